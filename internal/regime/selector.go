// Package regime classifies each symbol's market behavior mode and pins
// the strategy variant that runs on it.
package regime

import (
	"sync"
)

// Label is a classified market regime.
type Label string

const (
	Trending Label = "trending"
	Ranging  Label = "ranging"
	Unknown  Label = "unknown"
)

// Valid reports whether l is a recognized label.
func (l Label) Valid() bool {
	return l == Trending || l == Ranging || l == Unknown
}

// Selector classifies per-symbol regimes from trend strength (ADX) with a
// hysteresis band: above High flips to Trending, below Low flips to
// Ranging, anything between keeps the previous state so the regime does
// not flap around a single threshold.
//
// An operator override pins every symbol to a fixed label and suppresses
// automatic transitions until cleared.
type Selector struct {
	mu       sync.Mutex
	high     float64
	low      float64
	prev     map[string]Label
	override Label // empty when automatic
}

// NewSelector builds a selector with the hysteresis thresholds
// low <= high. Equal thresholds degenerate to a plain cutover.
func NewSelector(low, high float64) *Selector {
	if high < low {
		low, high = high, low
	}
	return &Selector{
		high: high,
		low:  low,
		prev: make(map[string]Label),
	}
}

// Classify returns the regime for one symbol given its current trend
// strength. Not-ready input always reads Unknown and does not disturb the
// remembered state.
func (s *Selector) Classify(symbol string, trendStrength float64, ready bool) Label {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.override != "" {
		return s.override
	}
	if !ready {
		return Unknown
	}

	prev, ok := s.prev[symbol]
	if !ok {
		prev = Unknown
	}

	next := prev
	switch {
	case trendStrength >= s.high:
		next = Trending
	case trendStrength <= s.low:
		next = Ranging
	default:
		// Inside the band: keep prev, except from Unknown where there is
		// nothing to keep.
		if prev == Unknown {
			next = Unknown
		}
	}

	s.prev[symbol] = next
	return next
}

// SetOverride pins all symbols to the given label.
func (s *Selector) SetOverride(l Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = l
}

// ClearOverride resumes automatic classification.
func (s *Selector) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = ""
}

// Override returns the pinned label, or empty when automatic.
func (s *Selector) Override() Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}
