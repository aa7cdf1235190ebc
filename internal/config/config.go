// Package config loads and validates the YAML configuration and exposes
// the two live-reloadable flags (trading enabled, manual regime override)
// through an atomic Handle.
//
// Durations are configured as millisecond integers and converted to
// time.Duration through typed accessors.
package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/conn"
	"github.com/quantfold/tradebot/internal/exec"
	"github.com/quantfold/tradebot/internal/notify"
)

type Engine struct {
	IntervalMs     int      `yaml:"interval_ms"`
	Timeframe      string   `yaml:"timeframe"`
	Symbols        []string `yaml:"symbols"`
	WarmupBars     int      `yaml:"warmup_bars"`
	DrainTimeoutMs int      `yaml:"drain_timeout_ms"`
}

// Interval is the decision cycle period.
func (e Engine) Interval() time.Duration { return time.Duration(e.IntervalMs) * time.Millisecond }

// DrainTimeout bounds the shutdown wait for in-flight order attempts.
func (e Engine) DrainTimeout() time.Duration {
	return time.Duration(e.DrainTimeoutMs) * time.Millisecond
}

type Regime struct {
	ADXLow   float64 `yaml:"adx_low"`
	ADXHigh  float64 `yaml:"adx_high"`
	Override string  `yaml:"override"` // trending | ranging | empty
}

type Rank struct {
	TopN        int     `yaml:"top_n"`
	MaxAbsCorr  float64 `yaml:"max_abs_corr"`
	CorrWindow  int     `yaml:"corr_window"`
	WVolatility float64 `yaml:"w_volatility"`
	WTrend      float64 `yaml:"w_trend"`
	WMomentum   float64 `yaml:"w_momentum"`
	WCost       float64 `yaml:"w_cost"`
}

type Risk struct {
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxPerSymbol     int     `yaml:"max_per_symbol"`
	RiskPerTrade     float64 `yaml:"risk_per_trade"`
	StopATRMult      float64 `yaml:"stop_atr_mult"`
	TakeATRMult      float64 `yaml:"take_atr_mult"`
}

type Exec struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
	BackoffMaxMs  int `yaml:"backoff_max_ms"`
	MaxElapsedMs  int `yaml:"max_elapsed_ms"`
}

// Config converts to the executor's typed retry bounds.
func (x Exec) Config() exec.Config {
	return exec.Config{
		MaxAttempts: x.MaxAttempts,
		BackoffBase: time.Duration(x.BackoffBaseMs) * time.Millisecond,
		BackoffMax:  time.Duration(x.BackoffMaxMs) * time.Millisecond,
		MaxElapsed:  time.Duration(x.MaxElapsedMs) * time.Millisecond,
	}
}

type Conn struct {
	HeartbeatMs     int `yaml:"heartbeat_ms"`
	ReconnectBaseMs int `yaml:"reconnect_base_ms"`
	ReconnectMaxMs  int `yaml:"reconnect_max_ms"`
}

// Config converts to the supervisor's typed bounds.
func (c Conn) Config() conn.Config {
	return conn.Config{
		Interval:      time.Duration(c.HeartbeatMs) * time.Millisecond,
		ReconnectBase: time.Duration(c.ReconnectBaseMs) * time.Millisecond,
		ReconnectMax:  time.Duration(c.ReconnectMaxMs) * time.Millisecond,
	}
}

type Notify struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Config converts to the notifier's typed settings.
func (n Notify) Config() notify.Config {
	return notify.Config{
		URL:     n.URL,
		Timeout: time.Duration(n.TimeoutMs) * time.Millisecond,
	}
}

type Store struct {
	DSN string `yaml:"dsn"` // empty disables persistence
}

type Sim struct {
	Seed int64 `yaml:"seed"`
}

type Log struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type Root struct {
	TradingEnabled bool   `yaml:"trading_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`
	Engine         Engine `yaml:"engine"`
	Regime         Regime `yaml:"regime"`
	Rank           Rank   `yaml:"rank"`
	Risk           Risk   `yaml:"risk"`
	Exec           Exec   `yaml:"exec"`
	Conn           Conn   `yaml:"conn"`
	Notify         Notify `yaml:"notify"`
	Store          Store  `yaml:"store"`
	Sim            Sim    `yaml:"sim"`
	Log            Log    `yaml:"log"`
}

// Load reads the file, fills defaults, and validates.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Defaults returns a ready-to-run configuration without reading a file.
func Defaults() Root {
	var c Root
	c.applyDefaults()
	return c
}

func (c *Root) applyDefaults() {
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.Engine.IntervalMs == 0 {
		c.Engine.IntervalMs = 60_000
	}
	if c.Engine.Timeframe == "" {
		c.Engine.Timeframe = "M15"
	}
	if len(c.Engine.Symbols) == 0 {
		for _, m := range broker.DefaultSimSymbols() {
			c.Engine.Symbols = append(c.Engine.Symbols, m.Name)
		}
	}
	if c.Engine.WarmupBars == 0 {
		c.Engine.WarmupBars = 120
	}
	if c.Engine.DrainTimeoutMs == 0 {
		c.Engine.DrainTimeoutMs = 10_000
	}
	if c.Regime.ADXLow == 0 {
		c.Regime.ADXLow = 20
	}
	if c.Regime.ADXHigh == 0 {
		c.Regime.ADXHigh = 25
	}
	if c.Rank.TopN == 0 {
		c.Rank.TopN = 5
	}
	if c.Rank.MaxAbsCorr == 0 {
		c.Rank.MaxAbsCorr = 0.85
	}
	if c.Rank.CorrWindow == 0 {
		c.Rank.CorrWindow = 20
	}
	if c.Rank.WVolatility == 0 && c.Rank.WTrend == 0 && c.Rank.WMomentum == 0 && c.Rank.WCost == 0 {
		c.Rank.WVolatility = 0.20
		c.Rank.WTrend = 0.30
		c.Rank.WMomentum = 0.35
		c.Rank.WCost = 0.15
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 5
	}
	if c.Risk.MaxPerSymbol == 0 {
		c.Risk.MaxPerSymbol = 1
	}
	if c.Risk.RiskPerTrade == 0 {
		c.Risk.RiskPerTrade = 0.01
	}
	if c.Risk.StopATRMult == 0 {
		c.Risk.StopATRMult = 2.0
	}
	if c.Risk.TakeATRMult == 0 {
		c.Risk.TakeATRMult = 3.0
	}
	if c.Exec.MaxAttempts == 0 {
		c.Exec.MaxAttempts = 5
	}
	if c.Exec.BackoffBaseMs == 0 {
		c.Exec.BackoffBaseMs = 200
	}
	if c.Exec.BackoffMaxMs == 0 {
		c.Exec.BackoffMaxMs = 5_000
	}
	if c.Exec.MaxElapsedMs == 0 {
		c.Exec.MaxElapsedMs = 120_000
	}
	if c.Conn.HeartbeatMs == 0 {
		c.Conn.HeartbeatMs = 5_000
	}
	if c.Conn.ReconnectBaseMs == 0 {
		c.Conn.ReconnectBaseMs = 1_000
	}
	if c.Conn.ReconnectMaxMs == 0 {
		c.Conn.ReconnectMaxMs = 30_000
	}
	if c.Notify.TimeoutMs == 0 {
		c.Notify.TimeoutMs = 10_000
	}
	if c.Sim.Seed == 0 {
		c.Sim.Seed = 42
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations that would trade on garbage. Errors
// here are fatal at startup, never worked around.
func (c *Root) Validate() error {
	if !broker.ValidTimeframe(c.Engine.Timeframe) {
		return fmt.Errorf("engine.timeframe %q is not a known timeframe", c.Engine.Timeframe)
	}
	if c.Engine.IntervalMs < 1000 {
		return fmt.Errorf("engine.interval_ms %d is below 1000", c.Engine.IntervalMs)
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols is empty")
	}
	if c.Regime.ADXLow >= c.Regime.ADXHigh {
		return fmt.Errorf("regime.adx_low (%.1f) must be below regime.adx_high (%.1f)",
			c.Regime.ADXLow, c.Regime.ADXHigh)
	}
	if c.Rank.MaxAbsCorr <= 0 || c.Rank.MaxAbsCorr > 1 {
		return fmt.Errorf("rank.max_abs_corr %.2f must be in (0, 1]", c.Rank.MaxAbsCorr)
	}
	if c.Rank.TopN < 1 {
		return fmt.Errorf("rank.top_n must be at least 1")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 0.05 {
		return fmt.Errorf("risk.risk_per_trade %.4f must be in (0, 0.05]", c.Risk.RiskPerTrade)
	}
	if c.Risk.StopATRMult <= 0 {
		return fmt.Errorf("risk.stop_atr_mult must be positive")
	}
	switch c.Regime.Override {
	case "", "trending", "ranging":
	default:
		return fmt.Errorf("regime.override %q must be trending, ranging or empty", c.Regime.Override)
	}
	return nil
}

// Handle publishes the live-reloadable subset. Reads are lock-free; the
// full Root stays immutable after startup.
type Handle struct {
	tradingEnabled atomic.Bool
	override       atomic.Value // string
}

// NewHandle seeds the handle from the loaded configuration.
func NewHandle(c Root) *Handle {
	h := &Handle{}
	h.tradingEnabled.Store(c.TradingEnabled)
	h.override.Store(c.Regime.Override)
	return h
}

// TradingEnabled reports the live kill-switch state.
func (h *Handle) TradingEnabled() bool { return h.tradingEnabled.Load() }

// SetTradingEnabled flips the kill switch.
func (h *Handle) SetTradingEnabled(v bool) { h.tradingEnabled.Store(v) }

// RegimeOverride returns the manual override label, empty when automatic.
func (h *Handle) RegimeOverride() string { return h.override.Load().(string) }

// SetRegimeOverride pins or clears the manual regime.
func (h *Handle) SetRegimeOverride(label string) { h.override.Store(label) }
