package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPearsonPerfectCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Pearson(a, b), 1e-12)
}

func TestPearsonPerfectAntiCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{5, 4, 3, 2, 1}
	assert.InDelta(t, -1.0, Pearson(a, b), 1e-12)
}

func TestPearsonDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, Pearson(nil, nil))
	assert.Equal(t, 0.0, Pearson([]float64{1, 1, 1}, []float64{1, 2, 3}))
}

func TestPearsonUsesCommonLength(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 99, -3}
	b := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Pearson(a, b), 1e-12)
}

func cands(syms ...string) []Candidate {
	out := make([]Candidate, len(syms))
	for i, s := range syms {
		out[i] = Candidate{Symbol: s, Score: 1 - 0.1*float64(i)}
	}
	return out
}

func TestDiversifyAdmitsUncorrelated(t *testing.T) {
	returns := map[string][]float64{
		"A": {0.01, -0.02, 0.03, -0.01},
		"B": {-0.02, 0.01, -0.01, 0.03},
		"C": {0.03, 0.02, -0.03, 0.01},
	}
	sel := Diversify(cands("A", "B", "C"), returns, 0.99, 3)
	assert.Len(t, sel.Selected, 3)
	assert.Empty(t, sel.Excluded)
}

func TestDiversifyExcludesCorrelatedWithReason(t *testing.T) {
	base := []float64{0.01, -0.02, 0.03, -0.01, 0.02}
	clone := append([]float64(nil), base...)
	returns := map[string][]float64{
		"A": base,
		"B": clone, // identical series, corr = 1
		"C": {-0.02, 0.01, -0.01, 0.03, -0.03},
	}
	sel := Diversify(cands("A", "B", "C"), returns, 0.85, 3)

	require.Len(t, sel.Selected, 2)
	assert.Equal(t, "A", sel.Selected[0].Symbol)
	assert.Equal(t, "C", sel.Selected[1].Symbol)
	assert.Contains(t, sel.Excluded, "B")
}

func TestDiversifyNeverBackfills(t *testing.T) {
	// Everything correlates with the leader: the selection stays at one
	// member even though topN wants three.
	base := []float64{0.01, -0.02, 0.03, -0.01, 0.02}
	returns := map[string][]float64{
		"A": base,
		"B": append([]float64(nil), base...),
		"C": append([]float64(nil), base...),
	}
	sel := Diversify(cands("A", "B", "C"), returns, 0.85, 3)

	assert.Len(t, sel.Selected, 1)
	assert.Len(t, sel.Excluded, 2)
}

func TestDiversifyStopsAtTopN(t *testing.T) {
	returns := map[string][]float64{
		"A": {0.01, -0.02, 0.03, -0.01},
		"B": {-0.02, 0.01, -0.01, 0.03},
		"C": {0.03, 0.02, -0.03, 0.01},
	}
	sel := Diversify(cands("A", "B", "C"), returns, 0.99, 2)
	assert.Len(t, sel.Selected, 2)
}

func TestDiversifyMissingReturnsReadAsUncorrelated(t *testing.T) {
	sel := Diversify(cands("A", "B"), map[string][]float64{}, 0.85, 2)
	assert.Len(t, sel.Selected, 2)
}
