package rank

import (
	"fmt"
	"math"
)

// Pearson computes the correlation of two return series over their common
// length. Degenerate series (empty, constant) read as zero correlation.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var ma, mb float64
	for i := 0; i < n; i++ {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)

	var num, da, db float64
	for i := 0; i < n; i++ {
		x, y := a[i]-ma, b[i]-mb
		num += x * y
		da += x * x
		db += y * y
	}
	den := math.Sqrt(da * db)
	if den == 0 {
		return 0
	}
	return num / den
}

// Diversify walks candidates in rank order and greedily admits each one
// whose absolute correlation with every already-admitted member stays
// below maxAbsCorr, stopping at topN. The bound is never relaxed: when
// too few candidates pass, the selection stays small.
func Diversify(ranked []Candidate, returns map[string][]float64, maxAbsCorr float64, topN int) Selection {
	sel := Selection{Excluded: make(map[string]string)}

	for _, cand := range ranked {
		if len(sel.Selected) >= topN {
			break
		}
		ok := true
		for _, member := range sel.Selected {
			c := Pearson(returns[cand.Symbol], returns[member.Symbol])
			if math.Abs(c) >= maxAbsCorr {
				sel.Excluded[cand.Symbol] = fmt.Sprintf("|corr(%s,%s)|=%.2f >= %.2f",
					cand.Symbol, member.Symbol, math.Abs(c), maxAbsCorr)
				ok = false
				break
			}
		}
		if ok {
			sel.Selected = append(sel.Selected, cand)
		}
	}
	return sel
}
