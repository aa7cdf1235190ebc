package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	c := Defaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, "M15", c.Engine.Timeframe)
	assert.Equal(t, 5, c.Rank.TopN)
	assert.Equal(t, 0.85, c.Rank.MaxAbsCorr)
	assert.NotEmpty(t, c.Engine.Symbols)
	assert.False(t, c.TradingEnabled, "trading must be off unless configured on")
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
trading_enabled: true
engine:
  interval_ms: 30000
  timeframe: H1
  symbols: [EURUSD, GBPUSD]
regime:
  adx_low: 18
  adx_high: 28
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.TradingEnabled)
	assert.Equal(t, 30*time.Second, c.Engine.Interval())
	assert.Equal(t, "H1", c.Engine.Timeframe)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, c.Engine.Symbols)
	assert.Equal(t, 18.0, c.Regime.ADXLow)
	// Untouched sections still get defaults.
	assert.Equal(t, 5, c.Rank.TopN)
	assert.Equal(t, 5, c.Exec.MaxAttempts)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [not a map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Root)
	}{
		{"bad timeframe", func(c *Root) { c.Engine.Timeframe = "M7" }},
		{"interval too small", func(c *Root) { c.Engine.IntervalMs = 100 }},
		{"inverted hysteresis", func(c *Root) { c.Regime.ADXLow, c.Regime.ADXHigh = 30, 20 }},
		{"corr bound out of range", func(c *Root) { c.Rank.MaxAbsCorr = 1.5 }},
		{"negative top n", func(c *Root) { c.Rank.TopN = -1 }},
		{"excessive risk", func(c *Root) { c.Risk.RiskPerTrade = 0.5 }},
		{"bad override", func(c *Root) { c.Regime.Override = "sideways" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidOverrideLabels(t *testing.T) {
	for _, o := range []string{"", "trending", "ranging"} {
		c := Defaults()
		c.Regime.Override = o
		assert.NoError(t, c.Validate(), "override %q", o)
	}
}

func TestHandleLiveFlags(t *testing.T) {
	c := Defaults()
	c.TradingEnabled = true
	c.Regime.Override = "ranging"

	h := NewHandle(c)
	assert.True(t, h.TradingEnabled())
	assert.Equal(t, "ranging", h.RegimeOverride())

	h.SetTradingEnabled(false)
	assert.False(t, h.TradingEnabled())

	h.SetRegimeOverride("")
	assert.Equal(t, "", h.RegimeOverride())
}
