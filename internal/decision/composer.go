// Package decision turns ranked symbols, regimes and strategy signals
// into actionable, idempotent Decision records.
package decision

import (
	"fmt"
	"time"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/regime"
	"github.com/quantfold/tradebot/internal/risk"
	"github.com/quantfold/tradebot/internal/signal"
	"github.com/quantfold/tradebot/internal/strategy"
)

// Action distinguishes what a Decision asks the executor to do.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// Decision is one actionable trading decision. Immutable once composed;
// consumed exactly once by the execution state machine.
type Decision struct {
	Symbol         string
	Timeframe      string
	Action         Action
	Side           broker.Side // order side; for closes, the closing side
	Volume         float64
	StopLoss       float64
	TakeProf       float64
	StrategyID     string
	Regime         regime.Label
	CandleClose    time.Time
	Score          float64
	Reason         string
	IdempotencyKey string
	// PositionID is set on closes.
	PositionID string
}

// Outcome explains why a symbol produced no decision this cycle (or which
// decision it produced). Every evaluated symbol gets exactly one outcome,
// which the engine persists for replay.
type Outcome struct {
	Symbol   string
	Status   string // open | close | no_signal | not_ready | no_strategy | skipped | risk_blocked
	Reason   string
	Decision *Decision
}

// Inputs bundles the per-symbol state the composer needs.
type Inputs struct {
	Features    signal.Features
	Regime      regime.Label
	Quote       broker.Quote
	Meta        broker.SymbolMeta
	Position    *broker.Position
	Score       float64
	Equity      float64
	Counts      risk.Counts
	CandleClose time.Time
}

// Composer applies strategy evaluation and risk limits. It never emits a
// fallback trade: any missing or stale input yields no Decision.
type Composer struct {
	registry  *strategy.Registry
	limits    risk.Limits
	timeframe string
}

// NewComposer wires the strategy registry and risk limits.
func NewComposer(registry *strategy.Registry, limits risk.Limits, timeframe string) *Composer {
	return &Composer{registry: registry, limits: limits, timeframe: timeframe}
}

// Compose evaluates one symbol for one candle close.
func (c *Composer) Compose(in Inputs) Outcome {
	sym := in.Features.Symbol

	if !in.Features.Ready {
		return Outcome{Symbol: sym, Status: "not_ready", Reason: "signal warmup incomplete"}
	}

	strat := c.registry.ForRegime(in.Regime)
	if strat == nil {
		return Outcome{Symbol: sym, Status: "no_strategy", Reason: fmt.Sprintf("regime %s has no active strategy", in.Regime)}
	}

	sig := strat.Evaluate(in.Features, strategy.Context{Position: in.Position})

	// Exit path: a held symbol is evaluated for exits only, never added to.
	if in.Position != nil {
		if sig.Exit {
			d := &Decision{
				Symbol:      sym,
				Timeframe:   c.timeframe,
				Action:      ActionClose,
				Side:        in.Position.Side.Opposite(),
				Volume:      in.Position.Volume,
				StrategyID:  strat.Name(),
				Regime:      in.Regime,
				CandleClose: in.CandleClose,
				Score:       in.Score,
				Reason:      sig.Reason,
				PositionID:  in.Position.ID,
			}
			d.IdempotencyKey = IdempotencyKey(sym, c.timeframe, in.CandleClose, strat.Name(), broker.Flat)
			return Outcome{Symbol: sym, Status: "close", Reason: sig.Reason, Decision: d}
		}
		return Outcome{Symbol: sym, Status: "skipped", Reason: "in position: no pyramiding"}
	}

	if sig.Side != broker.Long && sig.Side != broker.Short {
		return Outcome{Symbol: sym, Status: "no_signal", Reason: sig.Reason}
	}

	if ok, reason := c.limits.CheckCaps(sym, in.Counts); !ok {
		return Outcome{Symbol: sym, Status: "risk_blocked", Reason: reason}
	}

	entry := in.Quote.Ask
	if sig.Side == broker.Short {
		entry = in.Quote.Bid
	}
	sl, tp := risk.StopTake(sig.Side, entry, in.Features.ATR, c.limits.StopATRMult, c.limits.TakeATRMult)
	if sl == 0 && tp == 0 {
		return Outcome{Symbol: sym, Status: "risk_blocked", Reason: "no usable ATR for stop placement"}
	}
	vol, why := risk.Volume(in.Equity, c.limits.RiskPerTrade, entry, sl, in.Meta)
	if vol <= 0 {
		return Outcome{Symbol: sym, Status: "risk_blocked", Reason: "sizing blocked: " + why}
	}

	d := &Decision{
		Symbol:      sym,
		Timeframe:   c.timeframe,
		Action:      ActionOpen,
		Side:        sig.Side,
		Volume:      vol,
		StopLoss:    sl,
		TakeProf:    tp,
		StrategyID:  strat.Name(),
		Regime:      in.Regime,
		CandleClose: in.CandleClose,
		Score:       in.Score,
		Reason:      sig.Reason,
	}
	d.IdempotencyKey = IdempotencyKey(sym, c.timeframe, in.CandleClose, strat.Name(), sig.Side)
	return Outcome{Symbol: sym, Status: "open", Reason: sig.Reason, Decision: d}
}

// OrderRequest renders the broker request for a Decision.
func (d *Decision) OrderRequest() broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:         d.Symbol,
		Side:           d.Side,
		Volume:         d.Volume,
		StopLoss:       d.StopLoss,
		TakeProf:       d.TakeProf,
		Comment:        KeyComment(d.IdempotencyKey),
		IdempotencyKey: d.IdempotencyKey,
		PositionID:     d.PositionID,
	}
}
