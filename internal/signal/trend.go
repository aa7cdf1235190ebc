package signal

import "math"

// TrueRange computes Wilder's true range series. The first element is
// high-low since there is no previous close.
func TrueRange(high, low, close []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR is the Wilder-smoothed true range.
func ATR(high, low, close []float64, period int) []float64 {
	if len(close) == 0 {
		return nil
	}
	return RMA(TrueRange(high, low, close), period)
}

// DMI is the directional movement index output.
type DMI struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// ComputeDMI computes +DI/-DI and ADX (Wilder) over OHLC series. Division
// guards degrade to zero rather than propagating non-finite values, so a
// flat or too-short series reads as "no trend" instead of an error.
func ComputeDMI(high, low, close []float64, period int) DMI {
	n := len(close)
	d := DMI{
		PlusDI:  make([]float64, n),
		MinusDI: make([]float64, n),
		ADX:     make([]float64, n),
	}
	if n == 0 {
		return d
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := RMA(TrueRange(high, low, close), period)
	plusS := RMA(plusDM, period)
	minusS := RMA(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if atr[i] > 0 {
			d.PlusDI[i] = 100 * plusS[i] / atr[i]
			d.MinusDI[i] = 100 * minusS[i] / atr[i]
		}
		if sum := d.PlusDI[i] + d.MinusDI[i]; sum > 0 {
			dx[i] = 100 * math.Abs(d.PlusDI[i]-d.MinusDI[i]) / sum
		}
	}
	d.ADX = RMA(dx, period)
	return d
}

// RSI is Wilder's relative strength index, 0..100. Degenerate windows
// resolve to fixed values: no movement at all reads 50, only gains 100,
// only losses 0.
func RSI(close []float64, period int) []float64 {
	n := len(close)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := RMA(gains, period)
	avgLoss := RMA(losses, period)

	const eps = 1e-12
	for i := 0; i < n; i++ {
		switch {
		case avgGain[i] <= eps && avgLoss[i] <= eps:
			out[i] = 50
		case avgLoss[i] <= eps:
			out[i] = 100
		case avgGain[i] <= eps:
			out[i] = 0
		default:
			rs := avgGain[i] / avgLoss[i]
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}
