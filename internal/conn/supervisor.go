// Package conn maintains the broker session: periodic heartbeats, a
// circuit breaker around the probe, reconnect backoff, and a lock-free
// snapshot of session state that the decision pipeline reads without ever
// blocking the supervisor.
package conn

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/exec"
	"github.com/quantfold/tradebot/internal/observ"
)

// Snapshot is the single-writer session state published by the
// supervisor. Readers get a consistent copy via atomic load.
type Snapshot struct {
	Connected bool
	TradeMode broker.TradeMode
	Balance   float64
	Equity    float64
	CheckedAt time.Time
}

// HeartbeatSink receives every heartbeat result, append-only. Nil is
// allowed.
type HeartbeatSink interface {
	Heartbeat(ok bool, snap Snapshot)
}

// Config bounds the heartbeat and reconnect behavior.
type Config struct {
	Interval      time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// DefaultConfig probes every 5s and reconnects between 1s and 30s apart.
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		ReconnectBase: time.Second,
		ReconnectMax:  30 * time.Second,
	}
}

// Supervisor runs the session liveness loop as an independent task.
type Supervisor struct {
	broker         broker.Broker
	cb             *gobreaker.CircuitBreaker
	cfg            Config
	tradingEnabled func() bool
	sink           HeartbeatSink
	log            zerolog.Logger

	snap atomic.Value // Snapshot
}

// NewSupervisor wires the supervisor. tradingEnabled reads the live
// configuration flag on every call; sink may be nil.
func NewSupervisor(b broker.Broker, cfg Config, tradingEnabled func() bool, sink HeartbeatSink) *Supervisor {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	s := &Supervisor{
		broker:         b,
		cfg:            cfg,
		tradingEnabled: tradingEnabled,
		sink:           sink,
		log:            observ.Component("conn"),
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "broker-heartbeat",
		Timeout: cfg.ReconnectBase,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().Str("from", from.String()).Str("to", to.String()).
				Msg("heartbeat circuit state change")
		},
	})
	s.snap.Store(Snapshot{TradeMode: broker.ModeUnknown})
	return s
}

// Snapshot returns the latest published session state.
func (s *Supervisor) Snapshot() Snapshot {
	return s.snap.Load().(Snapshot)
}

// Gate renders the current AccountGate for the execution state machine.
// Always freshly composed: the trade-mode and trading_enabled flags must
// reflect the latest values, never a stale cycle.
func (s *Supervisor) Gate() exec.AccountGate {
	snap := s.Snapshot()
	return exec.AccountGate{
		Connected:      snap.Connected,
		TradeMode:      snap.TradeMode,
		TradingEnabled: s.tradingEnabled(),
	}
}

// Run drives heartbeats until ctx is cancelled. While disconnected it
// retries with exponential backoff instead of the regular interval.
func (s *Supervisor) Run(ctx context.Context) {
	reconnectWait := s.cfg.ReconnectBase
	for {
		ok := s.probe(ctx)

		wait := s.cfg.Interval
		if !ok {
			wait = reconnectWait
			reconnectWait *= 2
			if reconnectWait > s.cfg.ReconnectMax {
				reconnectWait = s.cfg.ReconnectMax
			}
		} else {
			reconnectWait = s.cfg.ReconnectBase
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// probe runs one heartbeat through the circuit breaker and publishes the
// resulting snapshot.
func (s *Supervisor) probe(ctx context.Context) bool {
	res, err := s.cb.Execute(func() (interface{}, error) {
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Interval)
		defer cancel()
		return s.broker.AccountInfo(probeCtx)
	})

	if err != nil {
		prev := s.Snapshot()
		snap := Snapshot{
			Connected: false,
			TradeMode: prev.TradeMode,
			Balance:   prev.Balance,
			Equity:    prev.Equity,
			CheckedAt: time.Now().UTC(),
		}
		s.snap.Store(snap)
		observ.HeartbeatFailures.Inc()
		observ.Connected.Set(0)
		if prev.Connected {
			s.log.Error().Err(err).Msg("heartbeat failed, session down")
		}
		if s.sink != nil {
			s.sink.Heartbeat(false, snap)
		}
		return false
	}

	info := res.(broker.AccountInfo)
	prev := s.Snapshot()
	snap := Snapshot{
		Connected: true,
		TradeMode: info.TradeMode,
		Balance:   info.Balance,
		Equity:    info.Equity,
		CheckedAt: time.Now().UTC(),
	}
	s.snap.Store(snap)
	observ.Connected.Set(1)
	if !prev.Connected {
		s.log.Info().Str("trade_mode", string(info.TradeMode)).Msg("session up")
	}
	if s.sink != nil {
		s.sink.Heartbeat(true, snap)
	}
	return true
}
