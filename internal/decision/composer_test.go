package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/regime"
	"github.com/quantfold/tradebot/internal/risk"
	"github.com/quantfold/tradebot/internal/signal"
	"github.com/quantfold/tradebot/internal/strategy"
)

var candleClose = time.Date(2026, 3, 2, 14, 15, 0, 0, time.UTC)

func testMeta() broker.SymbolMeta {
	return broker.SymbolMeta{
		Name:       "EURUSD",
		Point:      0.0001,
		VolumeMin:  0.01,
		VolumeMax:  100,
		VolumeStep: 0.01,
		TickValue:  1.0,
		TickSize:   0.0001,
	}
}

func newTestComposer() *Composer {
	return NewComposer(strategy.DefaultRegistry(), risk.DefaultLimits(), "M15")
}

// longEntry is a feature set the momentum strategy opens a long on.
func longEntry() signal.Features {
	return signal.Features{
		Symbol: "EURUSD", Close: 1.1, ATR: 0.002, ATRPct: 0.0018,
		ADX: 35, Cross: 1, EMASlope: 0.001, Hist: 0.001, Ready: true,
	}
}

func baseInputs() Inputs {
	return Inputs{
		Features:    longEntry(),
		Regime:      regime.Trending,
		Quote:       broker.Quote{Symbol: "EURUSD", Bid: 1.0999, Ask: 1.1001},
		Meta:        testMeta(),
		Score:       0.8,
		Equity:      100_000,
		Counts:      risk.Counts{PerSymbol: map[string]int{}},
		CandleClose: candleClose,
	}
}

func TestComposeNotReady(t *testing.T) {
	in := baseInputs()
	in.Features.Ready = false
	out := newTestComposer().Compose(in)
	assert.Equal(t, "not_ready", out.Status)
	assert.Nil(t, out.Decision)
}

func TestComposeUnknownRegimeHasNoStrategy(t *testing.T) {
	in := baseInputs()
	in.Regime = regime.Unknown
	out := newTestComposer().Compose(in)
	assert.Equal(t, "no_strategy", out.Status)
	assert.Nil(t, out.Decision)
}

func TestComposeOpenLong(t *testing.T) {
	out := newTestComposer().Compose(baseInputs())
	require.Equal(t, "open", out.Status)
	require.NotNil(t, out.Decision)

	d := out.Decision
	assert.Equal(t, ActionOpen, d.Action)
	assert.Equal(t, broker.Long, d.Side)
	assert.Greater(t, d.Volume, 0.0)
	assert.Less(t, d.StopLoss, 1.1001, "long stop must sit below entry")
	assert.Greater(t, d.TakeProf, 1.1001)
	assert.Equal(t, "two_pole_momentum", d.StrategyID)
	assert.Len(t, d.IdempotencyKey, 16)
	assert.Empty(t, d.PositionID)
}

func TestComposeSameCandleSameKeyRegardlessOfSize(t *testing.T) {
	c := newTestComposer()
	first := c.Compose(baseInputs())

	// A different equity changes the sized volume but not the identity of
	// the decision.
	in := baseInputs()
	in.Equity = 50_000
	second := c.Compose(in)

	require.NotNil(t, first.Decision)
	require.NotNil(t, second.Decision)
	assert.NotEqual(t, first.Decision.Volume, second.Decision.Volume)
	assert.Equal(t, first.Decision.IdempotencyKey, second.Decision.IdempotencyKey)
}

func TestComposeNoPyramiding(t *testing.T) {
	in := baseInputs()
	in.Position = &broker.Position{ID: "p1", Symbol: "EURUSD", Side: broker.Long, Volume: 0.1}
	// Entry-grade features, but the held position suppresses adding.
	out := newTestComposer().Compose(in)
	assert.Equal(t, "skipped", out.Status)
	assert.Nil(t, out.Decision)
}

func TestComposeExitClosesPosition(t *testing.T) {
	in := baseInputs()
	in.Position = &broker.Position{ID: "p1", Symbol: "EURUSD", Side: broker.Long, Volume: 0.37}
	in.Features.Cross = -1

	out := newTestComposer().Compose(in)
	require.Equal(t, "close", out.Status)
	require.NotNil(t, out.Decision)

	d := out.Decision
	assert.Equal(t, ActionClose, d.Action)
	assert.Equal(t, broker.Short, d.Side)
	assert.Equal(t, 0.37, d.Volume)
	assert.Equal(t, "p1", d.PositionID)
}

func TestComposeNoSignal(t *testing.T) {
	in := baseInputs()
	in.Features.Cross = 0
	out := newTestComposer().Compose(in)
	assert.Equal(t, "no_signal", out.Status)
}

func TestComposeRiskCapTotal(t *testing.T) {
	in := baseInputs()
	in.Counts = risk.Counts{Total: 5, PerSymbol: map[string]int{}}
	out := newTestComposer().Compose(in)
	assert.Equal(t, "risk_blocked", out.Status)
}

func TestComposeRiskCapPerSymbol(t *testing.T) {
	in := baseInputs()
	in.Counts = risk.Counts{Total: 1, PerSymbol: map[string]int{"EURUSD": 1}}
	out := newTestComposer().Compose(in)
	assert.Equal(t, "risk_blocked", out.Status)
}

func TestComposeNoATRBlocksSizing(t *testing.T) {
	in := baseInputs()
	in.Features.ATR = 0
	out := newTestComposer().Compose(in)
	assert.Equal(t, "risk_blocked", out.Status)
}

func TestOrderRequestCarriesKeyComment(t *testing.T) {
	out := newTestComposer().Compose(baseInputs())
	require.NotNil(t, out.Decision)
	req := out.Decision.OrderRequest()
	assert.Equal(t, KeyComment(out.Decision.IdempotencyKey), req.Comment)
	assert.Equal(t, out.Decision.IdempotencyKey, req.IdempotencyKey)
}
