package rank

import (
	"math"
	"sort"
)

// RobustMinMax scales values into [0,1], clipping outliers at
// median +/- 3*IQR first so one absurd reading cannot flatten the rest of
// the field. Constant input maps to 0.5 (no information either way).
func RobustMinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	med := quantile(finite, 0.5)
	q1 := quantile(finite, 0.25)
	q3 := quantile(finite, 0.75)
	iqr := q3 - q1

	lo, hi := minMax(finite)
	if iqr > 1e-12 {
		clipLo, clipHi := med-3*iqr, med+3*iqr
		clipped := make([]float64, len(values))
		for i, v := range values {
			clipped[i] = math.Min(math.Max(v, clipLo), clipHi)
		}
		lo, hi = minMax(clipped)
		values = clipped
	}

	if math.Abs(hi-lo) <= 1e-12 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func quantile(values []float64, q float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	pos := q * float64(len(s)-1)
	i := int(math.Floor(pos))
	frac := pos - float64(i)
	if i+1 >= len(s) {
		return s[len(s)-1]
	}
	return s[i]*(1-frac) + s[i+1]*frac
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
