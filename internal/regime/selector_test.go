package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThresholds(t *testing.T) {
	s := NewSelector(20, 25)

	assert.Equal(t, Trending, s.Classify("EURUSD", 30, true))
	assert.Equal(t, Ranging, s.Classify("GBPUSD", 10, true))
}

func TestHysteresisBandKeepsPreviousState(t *testing.T) {
	s := NewSelector(20, 25)

	assert.Equal(t, Trending, s.Classify("EURUSD", 28, true))
	// Oscillating inside the band must not produce a single transition.
	for _, adx := range []float64{24, 21, 23, 20.5, 24.9} {
		assert.Equal(t, Trending, s.Classify("EURUSD", adx, true), "adx=%v", adx)
	}
	assert.Equal(t, Ranging, s.Classify("EURUSD", 19, true))
	for _, adx := range []float64{21, 24, 22} {
		assert.Equal(t, Ranging, s.Classify("EURUSD", adx, true), "adx=%v", adx)
	}
}

func TestUnknownUntilFirstDecisiveReading(t *testing.T) {
	s := NewSelector(20, 25)
	assert.Equal(t, Unknown, s.Classify("EURUSD", 22, true))
	assert.Equal(t, Unknown, s.Classify("EURUSD", 23, true))
	assert.Equal(t, Trending, s.Classify("EURUSD", 26, true))
}

func TestNotReadyReadsUnknownWithoutDisturbingState(t *testing.T) {
	s := NewSelector(20, 25)
	assert.Equal(t, Trending, s.Classify("EURUSD", 30, true))
	assert.Equal(t, Unknown, s.Classify("EURUSD", 30, false))
	// Remembered state survives the not-ready gap.
	assert.Equal(t, Trending, s.Classify("EURUSD", 22, true))
}

func TestSymbolsAreIndependent(t *testing.T) {
	s := NewSelector(20, 25)
	assert.Equal(t, Trending, s.Classify("EURUSD", 30, true))
	assert.Equal(t, Ranging, s.Classify("GBPUSD", 5, true))
	assert.Equal(t, Trending, s.Classify("EURUSD", 22, true))
	assert.Equal(t, Ranging, s.Classify("GBPUSD", 22, true))
}

func TestOverridePinsAndSuppressesAutomatic(t *testing.T) {
	s := NewSelector(20, 25)
	s.SetOverride(Ranging)

	assert.Equal(t, Ranging, s.Classify("EURUSD", 90, true))
	assert.Equal(t, Ranging, s.Classify("EURUSD", 90, false))
	assert.Equal(t, Ranging, s.Override())

	s.ClearOverride()
	assert.Equal(t, Label(""), s.Override())
	assert.Equal(t, Trending, s.Classify("EURUSD", 90, true))
}

func TestEqualThresholdsDegenerateToCutover(t *testing.T) {
	s := NewSelector(25, 25)
	assert.Equal(t, Trending, s.Classify("X", 25, true))
	assert.Equal(t, Ranging, s.Classify("X", 24.9, true))
}
