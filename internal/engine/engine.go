// Package engine runs the decision loop: every interval it snapshots the
// session, computes features for the universe, classifies regimes, ranks
// and diversifies, composes decisions for the selection and hands them to
// the execution state machine. Cycles never overlap.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/config"
	"github.com/quantfold/tradebot/internal/conn"
	"github.com/quantfold/tradebot/internal/decision"
	"github.com/quantfold/tradebot/internal/exec"
	"github.com/quantfold/tradebot/internal/observ"
	"github.com/quantfold/tradebot/internal/rank"
	"github.com/quantfold/tradebot/internal/regime"
	"github.com/quantfold/tradebot/internal/risk"
	"github.com/quantfold/tradebot/internal/signal"
	"github.com/quantfold/tradebot/internal/strategy"
)

// OutcomeSink persists the per-symbol outcome of each cycle. Nil disables
// persistence.
type OutcomeSink interface {
	SaveOutcome(ctx context.Context, cycleID string, o decision.Outcome) error
}

// Engine wires the full pipeline for one universe.
type Engine struct {
	cfg      config.Root
	handle   *config.Handle
	broker   broker.Broker
	sup      *conn.Supervisor
	executor *exec.Executor
	selector *regime.Selector
	composer *decision.Composer
	outcomes OutcomeSink
	log      zerolog.Logger

	meta map[string]broker.SymbolMeta
}

// New builds the engine. outcomes may be nil.
func New(cfg config.Root, h *config.Handle, b broker.Broker, sup *conn.Supervisor, ex *exec.Executor, outcomes OutcomeSink) *Engine {
	limits := risk.Limits{
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
		MaxPerSymbol:     cfg.Risk.MaxPerSymbol,
		RiskPerTrade:     cfg.Risk.RiskPerTrade,
		StopATRMult:      cfg.Risk.StopATRMult,
		TakeATRMult:      cfg.Risk.TakeATRMult,
	}
	return &Engine{
		cfg:      cfg,
		handle:   h,
		broker:   b,
		sup:      sup,
		executor: ex,
		selector: regime.NewSelector(cfg.Regime.ADXLow, cfg.Regime.ADXHigh),
		composer: decision.NewComposer(strategy.DefaultRegistry(), limits, cfg.Engine.Timeframe),
		outcomes: outcomes,
		log:      observ.Component("engine"),
	}
}

// Run executes cycles until ctx is cancelled, then drains the executor.
// Returns the idempotency keys left unresolved by the drain.
func (e *Engine) Run(ctx context.Context) []string {
	if err := e.loadMeta(ctx); err != nil {
		e.log.Error().Err(err).Msg("symbol metadata unavailable at start")
	}

	ticker := time.NewTicker(e.cfg.Engine.Interval())
	defer ticker.Stop()

	// First cycle immediately; later cycles on the tick. A cycle that
	// overruns simply delays the next one, it is never run concurrently.
	e.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			unresolved := e.executor.Drain(e.cfg.Engine.DrainTimeout())
			if len(unresolved) > 0 {
				e.log.Warn().Strs("keys", unresolved).
					Msg("shutdown with unresolved order attempts")
			}
			return unresolved
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

func (e *Engine) loadMeta(ctx context.Context) error {
	metas, err := e.broker.ListSymbols(ctx)
	if err != nil {
		return err
	}
	e.meta = make(map[string]broker.SymbolMeta, len(metas))
	for _, m := range metas {
		e.meta[m.Name] = m
	}
	return nil
}

// symState is one symbol's evaluated inputs for the cycle.
type symState struct {
	feats       signal.Features
	quote       broker.Quote
	returns     []float64
	regime      regime.Label
	candleClose time.Time
}

func (e *Engine) cycle(parent context.Context) {
	start := time.Now()
	cycleID := uuid.NewString()
	clog := e.log.With().Str("cycle", cycleID).Logger()

	// Everything in a cycle is bounded by the interval; a stuck fetch
	// must not leak into the next cycle.
	ctx, cancel := context.WithTimeout(parent, e.cfg.Engine.Interval())
	defer cancel()

	snap := e.sup.Snapshot()
	if !snap.Connected {
		clog.Warn().Msg("session down, cycle skipped")
		return
	}
	e.applyOverride()

	if e.meta == nil {
		if err := e.loadMeta(ctx); err != nil {
			clog.Error().Err(err).Msg("symbol metadata fetch failed, cycle skipped")
			return
		}
	}

	positions, err := e.broker.ListPositions(ctx)
	if err != nil {
		clog.Error().Err(err).Msg("position fetch failed, cycle skipped")
		return
	}
	counts := risk.CountPositions(positions)
	held := make(map[string]*broker.Position, len(positions))
	for i := range positions {
		held[positions[i].Symbol] = &positions[i]
	}

	states := e.evaluate(ctx, clog)
	if len(states) == 0 {
		clog.Warn().Msg("no symbol produced usable data, cycle skipped")
		return
	}

	ranked, scores := e.rankUniverse(states)
	sel := rank.Diversify(ranked, returnsOf(states), e.cfg.Rank.MaxAbsCorr, e.cfg.Rank.TopN)
	observ.RankedSelected.Set(float64(len(sel.Selected)))

	// Held symbols are always evaluated so exits fire even when the
	// symbol dropped out of the ranking.
	targets := make(map[string]struct{}, len(sel.Selected)+len(held))
	for _, c := range sel.Selected {
		targets[c.Symbol] = struct{}{}
	}
	for sym := range held {
		targets[sym] = struct{}{}
	}

	submitted := 0
	for sym := range targets {
		st, ok := states[sym]
		if !ok {
			continue
		}
		out := e.composer.Compose(decision.Inputs{
			Features:    st.feats,
			Regime:      st.regime,
			Quote:       st.quote,
			Meta:        e.meta[sym],
			Position:    held[sym],
			Score:       scores[sym],
			Equity:      snap.Equity,
			Counts:      counts,
			CandleClose: st.candleClose,
		})
		observ.DecisionsTotal.WithLabelValues(out.Status).Inc()
		e.saveOutcome(cycleID, out)

		if out.Decision != nil {
			// Submissions outlive the cycle deadline; retries are bounded
			// by the executor's own elapsed-time budget.
			e.executor.Submit(parent, *out.Decision)
			submitted++
			clog.Info().Str("symbol", sym).Str("action", string(out.Decision.Action)).
				Str("side", string(out.Decision.Side)).Float64("volume", out.Decision.Volume).
				Str("key", out.Decision.IdempotencyKey).Msg("decision submitted")
		}
	}

	observ.CyclesTotal.Inc()
	observ.CycleLatency.Observe(time.Since(start).Seconds())
	clog.Info().Int("universe", len(states)).Int("selected", len(sel.Selected)).
		Int("submitted", submitted).Dur("elapsed", time.Since(start)).
		Msg("cycle complete")
}

// applyOverride syncs the live manual regime flag into the selector.
func (e *Engine) applyOverride() {
	switch e.handle.RegimeOverride() {
	case string(regime.Trending):
		e.selector.SetOverride(regime.Trending)
	case string(regime.Ranging):
		e.selector.SetOverride(regime.Ranging)
	default:
		e.selector.ClearOverride()
	}
}

// evaluate fetches candles and quotes and computes features for every
// universe symbol. Symbols that fail to fetch are skipped for the cycle.
func (e *Engine) evaluate(ctx context.Context, clog zerolog.Logger) map[string]*symState {
	states := make(map[string]*symState, len(e.cfg.Engine.Symbols))
	for _, sym := range e.cfg.Engine.Symbols {
		candles, err := e.broker.Candles(ctx, sym, e.cfg.Engine.Timeframe, e.cfg.Engine.WarmupBars)
		if err != nil {
			clog.Warn().Str("symbol", sym).Err(err).Msg("candle fetch failed, symbol skipped")
			continue
		}
		if len(candles) == 0 {
			continue
		}
		quote, err := e.broker.Quote(ctx, sym)
		if err != nil {
			clog.Warn().Str("symbol", sym).Err(err).Msg("quote fetch failed, symbol skipped")
			continue
		}

		feats := signal.ComputeFeatures(sym, candles)
		states[sym] = &symState{
			feats:       feats,
			quote:       quote,
			returns:     signal.Returns(candles, e.cfg.Rank.CorrWindow),
			regime:      e.selector.Classify(sym, feats.ADX, feats.Ready),
			candleClose: candles[len(candles)-1].CloseTime(),
		}
	}
	return states
}

func (e *Engine) rankUniverse(states map[string]*symState) ([]rank.Candidate, map[string]float64) {
	inputs := make([]rank.Input, 0, len(states))
	for sym, st := range states {
		spreadToATR := 0.0
		if st.feats.ATR > 0 {
			spreadToATR = (st.quote.Ask - st.quote.Bid) / st.feats.ATR
		}
		inputs = append(inputs, rank.Input{
			Symbol:      sym,
			Features:    st.feats,
			SpreadToATR: spreadToATR,
			Returns:     st.returns,
		})
	}

	w := rank.Weights{
		Volatility: e.cfg.Rank.WVolatility,
		Trend:      e.cfg.Rank.WTrend,
		Momentum:   e.cfg.Rank.WMomentum,
		Cost:       e.cfg.Rank.WCost,
	}
	ranked := rank.Rank(inputs, w)
	scores := make(map[string]float64, len(ranked))
	for _, c := range ranked {
		scores[c.Symbol] = c.Score
	}
	return ranked, scores
}

func returnsOf(states map[string]*symState) map[string][]float64 {
	out := make(map[string][]float64, len(states))
	for sym, st := range states {
		out[sym] = st.returns
	}
	return out
}

func (e *Engine) saveOutcome(cycleID string, o decision.Outcome) {
	if e.outcomes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.outcomes.SaveOutcome(ctx, cycleID, o); err != nil {
		e.log.Warn().Err(err).Str("symbol", o.Symbol).Msg("failed to persist outcome")
	}
}
