// Package signal computes the per-symbol indicator set the decision
// pipeline runs on: the two-pole super smoother oscillator, Wilder
// trend/volatility measures, and a streaming per-symbol state.
//
// Everything here is a pure function of the input candle history. The
// same sequence and parameters must produce bit-identical output on every
// run; decisions are replayed from logged candles and any drift here
// makes the log useless.
package signal

import "math"

// SuperSmoother applies the Ehlers two-pole low-pass filter.
//
//	a1 = exp(-1.414*pi / period)
//	b1 = 2*a1*cos(1.414*pi / period)
//	c2 = b1, c3 = -a1^2, c1 = 1 - c2 - c3
//	y[t] = c1*(x[t]+x[t-1])/2 + c2*y[t-1] + c3*y[t-2]
//
// The first two outputs are seeded with the input itself (flat start).
// That is deliberate: it keeps the filter fully defined from the first
// bar instead of special-casing a warmup error.
func SuperSmoother(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	c1, c2, c3 := smootherCoeffs(period)

	out := make([]float64, len(values))
	out[0] = values[0]
	if len(values) > 1 {
		out[1] = values[1]
	}
	for i := 2; i < len(values); i++ {
		out[i] = c1*(values[i]+values[i-1])/2 + c2*out[i-1] + c3*out[i-2]
	}
	return out
}

func smootherCoeffs(period int) (c1, c2, c3 float64) {
	a1 := math.Exp(-1.414 * math.Pi / float64(period))
	b1 := 2 * a1 * math.Cos(1.414*math.Pi/float64(period))
	c2 = b1
	c3 = -a1 * a1
	c1 = 1 - c2 - c3
	return c1, c2, c3
}

// EMA is the standard exponential moving average, alpha = 2/(period+1),
// seeded with the first value.
func EMA(values []float64, period int) []float64 {
	return ewm(values, 2/(float64(period)+1))
}

// RMA is Wilder's smoothing, alpha = 1/period. Used by ATR, ADX and RSI.
func RMA(values []float64, period int) []float64 {
	return ewm(values, 1/float64(period))
}

func ewm(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Oscillator is the batch output of the two-pole oscillator.
type Oscillator struct {
	Smooth []float64
	Osc    []float64 // close - smooth
	Signal []float64 // EMA(osc, signalPeriod)
	Hist   []float64 // osc - signal
	Cross  []int     // +1 hist crossed above zero, -1 below, 0 otherwise
}

// TwoPoleOscillator runs the full pipeline over a close series. It is
// implemented on top of the streaming State so batch and incremental
// callers can never disagree.
func TwoPoleOscillator(close []float64, period, signalPeriod int) Oscillator {
	n := len(close)
	o := Oscillator{
		Smooth: make([]float64, n),
		Osc:    make([]float64, n),
		Signal: make([]float64, n),
		Hist:   make([]float64, n),
		Cross:  make([]int, n),
	}
	st := NewState(period, signalPeriod)
	for i, c := range close {
		st.Update(c)
		o.Smooth[i] = st.Smooth()
		o.Osc[i] = st.Osc()
		o.Signal[i] = st.Signal()
		o.Hist[i] = st.Hist()
		o.Cross[i] = st.Cross()
	}
	return o
}
