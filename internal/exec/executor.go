// Package exec is the idempotent execution state machine. It converts
// Decisions into broker orders, retries transient failures with bounded
// backoff, and guarantees that one idempotency key never produces more
// than one live order.
//
// State machine per key:
//
//	Pending -> Submitted -> {Confirmed | Rejected}
//	Submitted -> Pending on transient transport failure
//	Pending/Submitted -> Abandoned when retries or elapsed time run out
//
// The paper-only account gate is re-checked before every
// Pending->Submitted transition; a violation is Rejected immediately and
// loudly, never retried.
package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/decision"
	"github.com/quantfold/tradebot/internal/observ"
)

// AccountGate is the safety snapshot read before each submission. It is
// re-read from the connectivity supervisor every time, never cached
// across transitions.
type AccountGate struct {
	Connected      bool
	TradeMode      broker.TradeMode
	TradingEnabled bool
}

// Allows reports whether submission is permitted, with a reason when not.
// Connectivity is handled separately: a down session defers, it does not
// reject.
func (g AccountGate) Allows() (bool, string) {
	if !g.TradingEnabled {
		return false, "trading disabled by configuration"
	}
	if !g.TradeMode.Paper() {
		return false, "paper-only gate: trade_mode=" + string(g.TradeMode)
	}
	return true, ""
}

// GateFunc supplies the current AccountGate.
type GateFunc func() AccountGate

// TransitionSink receives every attempt state change, append-only. The
// persistence collaborator implements this; a nil sink is allowed.
type TransitionSink interface {
	AttemptTransition(a Attempt)
}

// Alerter receives the loud events: confirmations, abandonments and
// safety-gate violations. Implementations must be fire-and-forget.
type Alerter interface {
	OrderConfirmed(a Attempt)
	OrderAbandoned(a Attempt)
	SafetyViolation(a Attempt, reason string)
}

// Config bounds the retry behavior.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxElapsed  time.Duration
}

// DefaultConfig mirrors sane paper-trading retry bounds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BackoffBase: 200 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		MaxElapsed:  2 * time.Minute,
	}
}

// Executor owns the arena of attempts keyed by IdempotencyKey. Each key
// runs at most one in-flight task; duplicate submissions are no-ops.
type Executor struct {
	broker broker.Broker
	gate   GateFunc
	sink   TransitionSink
	alerts Alerter
	cfg    Config
	log    zerolog.Logger

	mu       sync.Mutex
	attempts map[string]*Attempt
	inflight map[string]struct{}
	wg       sync.WaitGroup

	bo    *backoff
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an Executor. sink and alerts may be nil.
func New(b broker.Broker, gate GateFunc, sink TransitionSink, alerts Alerter, cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = DefaultConfig().MaxElapsed
	}
	return &Executor{
		broker:   b,
		gate:     gate,
		sink:     sink,
		alerts:   alerts,
		cfg:      cfg,
		log:      observ.Component("exec"),
		attempts: make(map[string]*Attempt),
		inflight: make(map[string]struct{}),
		bo:       newBackoff(cfg.BackoffBase, cfg.BackoffMax, time.Now().UnixNano()),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Submit hands a Decision to the state machine. Re-entry of a key that is
// already live or terminal is a no-op returning the current status. That
// is the idempotency guarantee.
func (e *Executor) Submit(ctx context.Context, d decision.Decision) Status {
	e.mu.Lock()
	if a, ok := e.attempts[d.IdempotencyKey]; ok {
		st := a.Status
		e.mu.Unlock()
		observ.DuplicateKeysTotal.Inc()
		e.log.Debug().Str("key", d.IdempotencyKey).Str("status", string(st)).
			Msg("duplicate decision dropped")
		return st
	}

	a := &Attempt{
		Key:       d.IdempotencyKey,
		Decision:  d,
		Status:    StatusPending,
		CreatedAt: e.now(),
		UpdatedAt: e.now(),
	}
	e.attempts[d.IdempotencyKey] = a
	e.inflight[d.IdempotencyKey] = struct{}{}
	e.mu.Unlock()

	e.record(*a)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, d.IdempotencyKey)
	}()
	return StatusPending
}

// run drives one key to a terminal state or leaves it Pending on
// cancellation for a later process to reconcile.
func (e *Executor) run(ctx context.Context, key string) {
	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
	}()

	started := e.now()
	retries := 0

	for {
		if ctx.Err() != nil {
			e.log.Warn().Str("key", key).Msg("cancelled before terminal state, left pending")
			return
		}
		if e.now().Sub(started) > e.cfg.MaxElapsed {
			e.abandon(key, "max elapsed time exceeded")
			return
		}

		gate := e.gate()

		// Outage policy: do not transition while disconnected. The
		// attempt stays Pending and is retried once the session is back.
		if !gate.Connected {
			if err := e.sleep(ctx, e.bo.delay(retries+1)); err != nil {
				return
			}
			continue
		}

		if ok, reason := gate.Allows(); !ok {
			a := e.transition(key, StatusRejected, "safety gate: "+reason, "")
			observ.SafetyRejectsTotal.Inc()
			observ.OrderAttemptsTotal.WithLabelValues(string(StatusRejected)).Inc()
			e.log.Error().Str("key", key).Str("reason", reason).
				Msg("safety gate violation: submission rejected")
			if e.alerts != nil {
				e.alerts.SafetyViolation(a, reason)
			}
			return
		}

		e.transition(key, StatusSubmitted, "", "")
		dec := e.decisionFor(key)
		ack, err := e.broker.SubmitOrder(ctx, dec.OrderRequest())
		if err == nil {
			a := e.transition(key, StatusConfirmed, "", ack.OrderID)
			observ.OrderAttemptsTotal.WithLabelValues(string(StatusConfirmed)).Inc()
			e.log.Info().Str("key", key).Str("order_id", ack.OrderID).Msg("order confirmed")
			if e.alerts != nil {
				e.alerts.OrderConfirmed(a)
			}
			return
		}

		if broker.IsFatal(err) {
			e.transition(key, StatusRejected, err.Error(), "")
			observ.OrderAttemptsTotal.WithLabelValues(string(StatusRejected)).Inc()
			e.log.Error().Str("key", key).Err(err).Msg("order rejected")
			return
		}

		// Transient: back to Pending and retry with backoff.
		retries++
		e.mu.Lock()
		a := e.attempts[key]
		a.Status = StatusPending
		a.Attempts = retries
		a.LastError = err.Error()
		a.UpdatedAt = e.now()
		snapshot := *a
		e.mu.Unlock()
		e.record(snapshot)
		e.log.Warn().Str("key", key).Int("attempt", retries).Err(err).
			Msg("transient submit failure, will retry")

		if retries >= e.cfg.MaxAttempts {
			e.abandon(key, "max retries exceeded: "+err.Error())
			return
		}
		if err := e.sleep(ctx, e.bo.delay(retries)); err != nil {
			return
		}
	}
}

func (e *Executor) abandon(key, reason string) {
	a := e.transition(key, StatusAbandoned, reason, "")
	observ.OrderAttemptsTotal.WithLabelValues(string(StatusAbandoned)).Inc()
	e.log.Error().Str("key", key).Str("reason", reason).Msg("order attempt abandoned")
	if e.alerts != nil {
		e.alerts.OrderAbandoned(a)
	}
}

func (e *Executor) transition(key string, st Status, lastErr, orderID string) Attempt {
	e.mu.Lock()
	a := e.attempts[key]
	a.Status = st
	if lastErr != "" {
		a.LastError = lastErr
	}
	if orderID != "" {
		a.OrderID = orderID
	}
	a.UpdatedAt = e.now()
	snapshot := *a
	e.mu.Unlock()
	e.record(snapshot)
	return snapshot
}

func (e *Executor) decisionFor(key string) decision.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[key].Decision
}

func (e *Executor) record(a Attempt) {
	if e.sink != nil {
		e.sink.AttemptTransition(a)
	}
}

// Status returns the current status for a key.
func (e *Executor) Status(key string) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.attempts[key]
	if !ok {
		return "", false
	}
	return a.Status, true
}

// Snapshot copies all attempts, for diagnostics and shutdown accounting.
func (e *Executor) Snapshot() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Attempt, 0, len(e.attempts))
	for _, a := range e.attempts {
		out = append(out, *a)
	}
	return out
}

// Drain waits for all in-flight attempts to reach a terminal state, up to
// the timeout, and returns the keys still unresolved. The engine persists
// those as unresolved for reconciliation on the next start.
func (e *Executor) Drain(timeout time.Duration) []string {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var unresolved []string
	for key, a := range e.attempts {
		if !a.Status.Terminal() {
			unresolved = append(unresolved, key)
		}
	}
	return unresolved
}

// Reconcile resolves keys persisted as Submitted by a previous process
// run. Keys matching a working order at the broker (by comment prefix)
// are Confirmed; the rest cannot be trusted and are Abandoned as
// unresolved rather than resubmitted.
func (e *Executor) Reconcile(ctx context.Context, keys []string) (map[string]Status, error) {
	open, err := e.broker.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}

	live := make(map[string]string, len(open)) // comment tag -> order id
	for _, o := range open {
		live[o.Comment] = o.OrderID
	}

	out := make(map[string]Status, len(keys))
	for _, key := range keys {
		status := StatusAbandoned
		reason := "unresolved after restart"
		orderID := ""
		if id, ok := live[decision.KeyComment(key)]; ok {
			status = StatusConfirmed
			reason = ""
			orderID = id
		}

		e.mu.Lock()
		a, exists := e.attempts[key]
		if !exists {
			a = &Attempt{Key: key, CreatedAt: e.now()}
			e.attempts[key] = a
		}
		a.Status = status
		a.OrderID = orderID
		if reason != "" {
			a.LastError = reason
		}
		a.UpdatedAt = e.now()
		snapshot := *a
		e.mu.Unlock()

		e.record(snapshot)
		observ.OrderAttemptsTotal.WithLabelValues(string(status)).Inc()
		out[key] = status
	}

	if len(keys) > 0 {
		e.log.Info().Int("keys", len(keys)).
			Str("resolved", summarize(out)).Msg("startup reconciliation complete")
	}
	return out, nil
}

func summarize(m map[string]Status) string {
	counts := map[Status]int{}
	for _, s := range m {
		counts[s]++
	}
	var b strings.Builder
	for s, n := range counts {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s:%d", s, n)
	}
	return b.String()
}
