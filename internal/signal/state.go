package signal

// State is the per-symbol recursive filter memory: the last two smoothed
// values, the previous close, the running EMA of the oscillator and the
// previous histogram value for cross detection.
//
// A State has exactly one writer, the signal step of the owning decision
// cycle, and is updated once per closed candle. It is deliberately not
// safe for concurrent use.
type State struct {
	c1, c2, c3 float64
	alpha      float64 // signal EMA

	n          int
	prevClose  float64
	smooth     [2]float64 // smooth[0] = y[t-1], smooth[1] = y[t-2]
	cur        float64    // y[t]
	osc        float64
	sig        float64
	prevHist   float64
	cross      int
	warmupBars int
}

// NewState builds the recursive memory for one symbol.
func NewState(period, signalPeriod int) *State {
	s := &State{alpha: 2 / (float64(signalPeriod) + 1)}
	s.c1, s.c2, s.c3 = smootherCoeffs(period)
	// The filter needs its two-bar seed plus the signal EMA to settle.
	s.warmupBars = period + signalPeriod
	return s
}

// Update consumes one candle close. Must be called exactly once per
// closed candle, in order.
func (s *State) Update(close float64) {
	switch s.n {
	case 0, 1:
		// Flat-start seed: the first two smoothed values are the input.
		s.cur = close
	default:
		s.cur = s.c1*(close+s.prevClose)/2 + s.c2*s.smooth[0] + s.c3*s.smooth[1]
	}

	s.osc = close - s.cur
	if s.n == 0 {
		s.sig = s.osc
	} else {
		s.sig = s.alpha*s.osc + (1-s.alpha)*s.sig
	}

	hist := s.osc - s.sig
	s.cross = 0
	if s.n > 0 {
		if s.prevHist <= 0 && hist > 0 {
			s.cross = 1
		} else if s.prevHist >= 0 && hist < 0 {
			s.cross = -1
		}
	}
	s.prevHist = hist

	s.smooth[1] = s.smooth[0]
	s.smooth[0] = s.cur
	s.prevClose = close
	s.n++
}

// Smooth returns the current filtered value.
func (s *State) Smooth() float64 { return s.cur }

// Osc returns close - smooth for the last update.
func (s *State) Osc() float64 { return s.osc }

// Signal returns the EMA of the oscillator.
func (s *State) Signal() float64 { return s.sig }

// Hist returns osc - signal.
func (s *State) Hist() float64 { return s.osc - s.sig }

// Cross reports +1 when the histogram crossed above zero on the last
// update, -1 when it crossed below, 0 otherwise.
func (s *State) Cross() int { return s.cross }

// Samples returns how many candles have been consumed.
func (s *State) Samples() int { return s.n }

// Ready reports whether enough candles have been seen for the filter
// output to be trusted.
func (s *State) Ready() bool { return s.n >= s.warmupBars }
