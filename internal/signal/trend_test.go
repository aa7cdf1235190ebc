package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIDegenerateFlat(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	out := RSI(closes, RSIPeriod)
	for i, v := range out {
		assert.Equal(t, 50.0, v, "index %d", i)
	}
}

func TestRSIOnlyGains(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out := RSI(closes, RSIPeriod)
	assert.Equal(t, 100.0, out[len(out)-1])
}

func TestRSIOnlyLosses(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	out := RSI(closes, RSIPeriod)
	assert.Equal(t, 0.0, out[len(out)-1])
}

func TestRSIBounded(t *testing.T) {
	closes := randomCloses(3, 200)
	for i, v := range RSI(closes, RSIPeriod) {
		assert.GreaterOrEqual(t, v, 0.0, "index %d", i)
		assert.LessOrEqual(t, v, 100.0, "index %d", i)
	}
}

func TestTrueRangeFirstBarIsHighLow(t *testing.T) {
	tr := TrueRange([]float64{12}, []float64{9}, []float64{10})
	require.Len(t, tr, 1)
	assert.Equal(t, 3.0, tr[0])
}

func TestTrueRangeUsesGaps(t *testing.T) {
	// Second bar gaps far above the previous close.
	high := []float64{12, 25}
	low := []float64{9, 24}
	close := []float64{10, 24.5}
	tr := TrueRange(high, low, close)
	assert.Equal(t, 15.0, tr[1], "gap from prior close must dominate high-low")
}

func TestDMIFlatSeriesReadsNoTrend(t *testing.T) {
	n := 60
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		high[i], low[i], close[i] = 100, 100, 100
	}
	d := ComputeDMI(high, low, close, ADXPeriod)
	last := n - 1
	assert.Equal(t, 0.0, d.ADX[last])
	assert.Equal(t, 0.0, d.PlusDI[last])
	assert.Equal(t, 0.0, d.MinusDI[last])
}

func TestDMITrendingSeriesReadsStrongTrend(t *testing.T) {
	n := 100
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + 2*float64(i)
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}
	d := ComputeDMI(high, low, close, ADXPeriod)
	last := n - 1
	assert.Greater(t, d.ADX[last], 25.0, "steady climb should classify as a strong trend")
	assert.Greater(t, d.PlusDI[last], d.MinusDI[last])
}

func TestDMIEmptyInput(t *testing.T) {
	d := ComputeDMI(nil, nil, nil, ADXPeriod)
	assert.Empty(t, d.ADX)
}

func TestATRPositiveOnVariedSeries(t *testing.T) {
	closes := randomCloses(5, 80)
	high := make([]float64, len(closes))
	low := make([]float64, len(closes))
	for i, c := range closes {
		high[i] = c * 1.01
		low[i] = c * 0.99
	}
	atr := ATR(high, low, closes, ATRPeriod)
	assert.Greater(t, atr[len(atr)-1], 0.0)
}
