// Package strategy holds the closed set of strategy variants and the
// registry that maps a regime to the variant trading it.
package strategy

import (
	"fmt"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/regime"
	"github.com/quantfold/tradebot/internal/signal"
)

// Signal is a strategy's verdict for one symbol on one candle close.
type Signal struct {
	Side       broker.Side
	Confidence float64
	Reason     string
	Exit       bool // true when Side==Flat means "close the open position"
}

// Context is the evaluation context beyond the feature snapshot.
type Context struct {
	Position *broker.Position // open position for the symbol, if any
}

// Strategy evaluates one symbol's features into a Signal. Implementations
// must be pure: no I/O, no clock, no mutation of inputs.
type Strategy interface {
	Name() string
	Evaluate(f signal.Features, ctx Context) Signal
}

// Registry is the fixed regime -> strategy table. Unknown deliberately
// has no entry: an unclassified symbol trades nothing.
type Registry struct {
	byRegime map[regime.Label]Strategy
	byName   map[string]Strategy
}

// DefaultRegistry wires the two shipped variants.
func DefaultRegistry() *Registry {
	return NewRegistry(map[regime.Label]Strategy{
		regime.Trending: Momentum{},
		regime.Ranging:  MeanReversion{},
	})
}

// NewRegistry builds a registry from an explicit regime table.
func NewRegistry(table map[regime.Label]Strategy) *Registry {
	r := &Registry{
		byRegime: make(map[regime.Label]Strategy, len(table)),
		byName:   make(map[string]Strategy, len(table)),
	}
	for lbl, s := range table {
		r.byRegime[lbl] = s
		r.byName[s.Name()] = s
	}
	return r
}

// ForRegime returns the strategy active in the given regime, or nil when
// none trades it (Unknown).
func (r *Registry) ForRegime(l regime.Label) Strategy {
	return r.byRegime[l]
}

// ByName looks a strategy up by id, for reconciliation of logged
// decisions.
func (r *Registry) ByName(name string) (Strategy, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
