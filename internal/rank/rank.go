// Package rank scores the discovered universe and picks a fixed-size,
// correlation-diversified subset to trade each cycle.
package rank

import (
	"math"
	"sort"

	"github.com/quantfold/tradebot/internal/signal"
)

// Weights are the composite score weights. They are normalized at use, so
// only their ratios matter.
type Weights struct {
	Volatility float64
	Trend      float64
	Momentum   float64
	Cost       float64
}

// DefaultWeights favors momentum and trend fitness over raw volatility.
func DefaultWeights() Weights {
	return Weights{Volatility: 0.2, Trend: 0.3, Momentum: 0.35, Cost: 0.15}
}

// Input is one symbol's raw ranking features for the cycle.
type Input struct {
	Symbol      string
	Features    signal.Features
	SpreadToATR float64   // liquidity cost proxy
	Returns     []float64 // trailing return window for correlation
}

// Candidate is a scored symbol.
type Candidate struct {
	Symbol     string
	Score      float64
	Components map[string]float64
}

// Selection is the diversified pick plus per-symbol exclusion reasons.
type Selection struct {
	Selected []Candidate
	Excluded map[string]string
}

// Rank scores all candidates and returns them sorted by score descending,
// ties broken by symbol name so the order is reproducible.
func Rank(inputs []Input, w Weights) []Candidate {
	if len(inputs) == 0 {
		return nil
	}

	vol := make([]float64, len(inputs))
	trend := make([]float64, len(inputs))
	mom := make([]float64, len(inputs))
	cost := make([]float64, len(inputs))
	for i, in := range inputs {
		vol[i] = in.Features.ATRPct
		trend[i] = in.Features.ADX
		mom[i] = momentumStrength(in.Features)
		cost[i] = in.SpreadToATR
	}

	volN := RobustMinMax(vol)
	trendN := RobustMinMax(trend)
	momN := RobustMinMax(mom)
	costN := RobustMinMax(cost)

	total := w.Volatility + w.Trend + w.Momentum + w.Cost
	if total <= 0 {
		total = 1
	}

	out := make([]Candidate, 0, len(inputs))
	for i, in := range inputs {
		costScore := 1 - costN[i] // cheap is good
		score := (w.Volatility*volN[i] + w.Trend*trendN[i] + w.Momentum*momN[i] + w.Cost*costScore) / total
		score = math.Min(math.Max(score, 0), 1)
		out = append(out, Candidate{
			Symbol: in.Symbol,
			Score:  score,
			Components: map[string]float64{
				"volatility": volN[i],
				"trend":      trendN[i],
				"momentum":   momN[i],
				"cost":       costScore,
			},
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// momentumStrength prefers oscillator histogram magnitude relative to
// ATR; symbols without a usable ATR fall back to the 20-bar return.
func momentumStrength(f signal.Features) float64 {
	if f.ATR > 0 {
		return math.Abs(f.Hist) / f.ATR
	}
	return math.Abs(f.Ret20)
}
