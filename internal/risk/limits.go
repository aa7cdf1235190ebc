// Package risk holds the entry-time checks between a strategy signal and
// an order: position caps, stop placement and risk-based sizing.
package risk

import (
	"fmt"

	"github.com/quantfold/tradebot/internal/broker"
)

// Limits are the static risk limits for entry checks.
type Limits struct {
	MaxOpenPositions int
	MaxPerSymbol     int
	RiskPerTrade     float64 // fraction of equity, e.g. 0.01
	StopATRMult      float64
	TakeATRMult      float64
}

// DefaultLimits is a conservative paper-trading default.
func DefaultLimits() Limits {
	return Limits{
		MaxOpenPositions: 5,
		MaxPerSymbol:     1,
		RiskPerTrade:     0.01,
		StopATRMult:      2.0,
		TakeATRMult:      3.0,
	}
}

// Counts summarizes open positions.
type Counts struct {
	Total     int
	PerSymbol map[string]int
}

// CountPositions tallies open positions in total and per symbol.
func CountPositions(positions []broker.Position) Counts {
	c := Counts{PerSymbol: make(map[string]int)}
	for _, p := range positions {
		c.Total++
		c.PerSymbol[p.Symbol]++
	}
	return c
}

// CheckCaps rejects an entry that would breach position limits. Returns a
// human-readable reason when blocked.
func (l Limits) CheckCaps(symbol string, counts Counts) (bool, string) {
	if counts.Total >= l.MaxOpenPositions {
		return false, fmt.Sprintf("max open positions reached (%d)", counts.Total)
	}
	if counts.PerSymbol[symbol] >= l.MaxPerSymbol {
		return false, fmt.Sprintf("max positions for %s reached (%d)", symbol, counts.PerSymbol[symbol])
	}
	return true, ""
}
