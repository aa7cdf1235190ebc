package signal

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCloses(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		price *= 1 + 0.002*rng.NormFloat64()
		out[i] = price
	}
	return out
}

func TestSuperSmootherConstantInputIsIdentity(t *testing.T) {
	in := make([]float64, 50)
	for i := range in {
		in[i] = 42.5
	}
	out := SuperSmoother(in, 20)
	for i, v := range out {
		assert.InDelta(t, 42.5, v, 1e-9, "index %d", i)
	}
}

func TestSuperSmootherFlatStartSeed(t *testing.T) {
	in := []float64{101.0, 99.5, 100.2, 100.8}
	out := SuperSmoother(in, 20)
	require.Len(t, out, 4)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
}

func TestSuperSmootherCoefficientsSumToOne(t *testing.T) {
	for _, period := range []int{5, 14, 20, 50} {
		c1, c2, c3 := smootherCoeffs(period)
		assert.InDelta(t, 1.0, c1+c2+c3, 1e-12, "period %d", period)
	}
}

func TestBatchMatchesStreaming(t *testing.T) {
	closes := randomCloses(7, 200)

	batch := SuperSmoother(closes, OscPeriod)
	osc := TwoPoleOscillator(closes, OscPeriod, OscSignalPer)

	for i := range closes {
		require.InDelta(t, batch[i], osc.Smooth[i], 1e-9, "smooth diverges at %d", i)
		require.InDelta(t, closes[i]-batch[i], osc.Osc[i], 1e-9, "osc diverges at %d", i)
		require.InDelta(t, osc.Osc[i]-osc.Signal[i], osc.Hist[i], 1e-9, "hist diverges at %d", i)
	}
}

func TestOscillatorDeterministic(t *testing.T) {
	closes := randomCloses(11, 150)
	a := TwoPoleOscillator(closes, OscPeriod, OscSignalPer)
	b := TwoPoleOscillator(closes, OscPeriod, OscSignalPer)
	assert.Equal(t, a, b)
}

func TestCrossOnlyOnHistogramSignChange(t *testing.T) {
	closes := randomCloses(23, 400)
	o := TwoPoleOscillator(closes, OscPeriod, OscSignalPer)

	sawUp, sawDown := false, false
	for i := 1; i < len(closes); i++ {
		switch o.Cross[i] {
		case 1:
			assert.Greater(t, o.Hist[i], 0.0, "up-cross at %d without positive hist", i)
			assert.LessOrEqual(t, o.Hist[i-1], 0.0, "up-cross at %d without prior non-positive hist", i)
			sawUp = true
		case -1:
			assert.Less(t, o.Hist[i], 0.0, "down-cross at %d without negative hist", i)
			assert.GreaterOrEqual(t, o.Hist[i-1], 0.0, "down-cross at %d without prior non-negative hist", i)
			sawDown = true
		default:
			if o.Hist[i-1] < 0 && o.Hist[i] > 0 {
				t.Fatalf("missed up-cross at %d", i)
			}
			if o.Hist[i-1] > 0 && o.Hist[i] < 0 {
				t.Fatalf("missed down-cross at %d", i)
			}
		}
	}
	assert.True(t, sawUp, "series never crossed up")
	assert.True(t, sawDown, "series never crossed down")
}

func TestStateReadyAfterWarmup(t *testing.T) {
	st := NewState(OscPeriod, OscSignalPer)
	for i := 0; i < OscPeriod+OscSignalPer-1; i++ {
		st.Update(100 + float64(i))
		assert.False(t, st.Ready(), "ready too early at %d", i)
	}
	st.Update(100)
	assert.True(t, st.Ready())
	assert.Equal(t, OscPeriod+OscSignalPer, st.Samples())
}

func TestEMASeedAndRecursion(t *testing.T) {
	in := []float64{10, 12, 11}
	out := EMA(in, 9)
	require.Len(t, out, 3)
	alpha := 2.0 / 10.0
	assert.Equal(t, 10.0, out[0])
	assert.InDelta(t, alpha*12+(1-alpha)*10, out[1], 1e-12)
}

func TestRMAIsWilderAlpha(t *testing.T) {
	in := []float64{1, 2}
	out := RMA(in, 14)
	assert.InDelta(t, (1.0/14)*2+(13.0/14)*1, out[1], 1e-12)
}

func TestOscillatorDecaysTowardZeroOnFlatTail(t *testing.T) {
	closes := append(randomCloses(31, 100), make([]float64, 300)...)
	for i := 100; i < len(closes); i++ {
		closes[i] = closes[99]
	}
	o := TwoPoleOscillator(closes, OscPeriod, OscSignalPer)
	last := len(closes) - 1
	assert.Less(t, math.Abs(o.Osc[last]), 1e-6, "oscillator failed to decay on flat input")
}
