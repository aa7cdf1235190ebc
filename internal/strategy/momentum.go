package strategy

import (
	"fmt"
	"math"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/signal"
)

// Momentum trades two-pole oscillator crossovers in the direction of the
// EMA slope. Runs in the Trending regime.
type Momentum struct{}

func (Momentum) Name() string { return "two_pole_momentum" }

func (m Momentum) Evaluate(f signal.Features, ctx Context) Signal {
	strength := 0.0
	if f.ATR > 0 {
		strength = math.Abs(f.Hist) / f.ATR
	}
	conf := clamp(0.25+0.45*clamp(strength, 0, 1)+0.30*clamp(f.ADX/50, 0, 1), 0, 1)

	if pos := ctx.Position; pos != nil {
		if pos.Side == broker.Long && f.Cross < 0 {
			return Signal{Side: broker.Flat, Confidence: conf, Reason: "crossover down: exit long", Exit: true}
		}
		if pos.Side == broker.Short && f.Cross > 0 {
			return Signal{Side: broker.Flat, Confidence: conf, Reason: "crossover up: exit short", Exit: true}
		}
		return Signal{Side: broker.Flat, Reason: "in position: no exit signal"}
	}

	if f.Cross > 0 && f.EMASlope > 0 {
		return Signal{Side: broker.Long, Confidence: conf, Reason: "crossover up with EMA slope up"}
	}
	if f.Cross < 0 && f.EMASlope < 0 {
		return Signal{Side: broker.Short, Confidence: conf, Reason: "crossover down with EMA slope down"}
	}
	return Signal{Side: broker.Flat, Reason: "no entry signal"}
}

// MeanReversion fades RSI extremes. Runs in the Ranging regime.
type MeanReversion struct{}

func (MeanReversion) Name() string { return "range_mean_reversion" }

func (m MeanReversion) Evaluate(f signal.Features, ctx Context) Signal {
	rsi := f.RSI

	if pos := ctx.Position; pos != nil {
		if pos.Side == broker.Long && rsi >= 50 {
			conf := clamp((rsi-50)/20, 0, 1)
			return Signal{Side: broker.Flat, Confidence: conf, Reason: "reverted to mean: exit long", Exit: true}
		}
		if pos.Side == broker.Short && rsi <= 50 {
			conf := clamp((50-rsi)/20, 0, 1)
			return Signal{Side: broker.Flat, Confidence: conf, Reason: "reverted to mean: exit short", Exit: true}
		}
		return Signal{Side: broker.Flat, Reason: "in position: no exit signal"}
	}

	if rsi <= 30 {
		conf := clamp((30-rsi)/20, 0, 1)
		return Signal{Side: broker.Long, Confidence: conf, Reason: fmt.Sprintf("RSI oversold (%.1f)", rsi)}
	}
	if rsi >= 70 {
		conf := clamp((rsi-70)/20, 0, 1)
		return Signal{Side: broker.Short, Confidence: conf, Reason: fmt.Sprintf("RSI overbought (%.1f)", rsi)}
	}
	return Signal{Side: broker.Flat, Reason: fmt.Sprintf("RSI neutral (%.1f)", rsi)}
}
