// Package store persists the audit trail: decision outcomes, execution
// attempt transitions and session heartbeats. All writes are append-only;
// reconciliation reads the latest transition per idempotency key.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/quantfold/tradebot/internal/conn"
	"github.com/quantfold/tradebot/internal/decision"
	"github.com/quantfold/tradebot/internal/exec"
	"github.com/quantfold/tradebot/internal/observ"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id            BIGSERIAL PRIMARY KEY,
	cycle_id      TEXT        NOT NULL,
	symbol        TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	reason        TEXT        NOT NULL DEFAULT '',
	action        TEXT        NOT NULL DEFAULT '',
	side          TEXT        NOT NULL DEFAULT '',
	volume        DOUBLE PRECISION NOT NULL DEFAULT 0,
	stop_loss     DOUBLE PRECISION NOT NULL DEFAULT 0,
	take_profit   DOUBLE PRECISION NOT NULL DEFAULT 0,
	strategy      TEXT        NOT NULL DEFAULT '',
	regime        TEXT        NOT NULL DEFAULT '',
	score         DOUBLE PRECISION NOT NULL DEFAULT 0,
	candle_close  TIMESTAMPTZ,
	idempotency_key TEXT      NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_decisions_cycle ON decisions (cycle_id);
CREATE INDEX IF NOT EXISTS idx_decisions_key   ON decisions (idempotency_key);

CREATE TABLE IF NOT EXISTS attempt_transitions (
	id              BIGSERIAL PRIMARY KEY,
	idempotency_key TEXT        NOT NULL,
	status          TEXT        NOT NULL,
	attempts        INT         NOT NULL DEFAULT 0,
	last_error      TEXT        NOT NULL DEFAULT '',
	order_id        TEXT        NOT NULL DEFAULT '',
	symbol          TEXT        NOT NULL DEFAULT '',
	side            TEXT        NOT NULL DEFAULT '',
	volume          DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transitions_key ON attempt_transitions (idempotency_key, id);

CREATE TABLE IF NOT EXISTS heartbeats (
	id         BIGSERIAL PRIMARY KEY,
	ok         BOOLEAN     NOT NULL,
	trade_mode TEXT        NOT NULL DEFAULT '',
	balance    DOUBLE PRECISION NOT NULL DEFAULT 0,
	equity     DOUBLE PRECISION NOT NULL DEFAULT 0,
	checked_at TIMESTAMPTZ NOT NULL
);
`

// writeTimeout bounds each insert so a slow database never stalls the
// execution goroutines feeding the sink.
const writeTimeout = 5 * time.Second

// Store is the Postgres-backed audit log. It implements both
// exec.TransitionSink and conn.HeartbeatSink.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

var (
	_ exec.TransitionSink = (*Store)(nil)
	_ conn.HeartbeatSink  = (*Store)(nil)
)

// Open connects, pings, and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: observ.Component("store")}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveOutcome records one composer outcome for a cycle.
func (s *Store) SaveOutcome(ctx context.Context, cycleID string, o decision.Outcome) error {
	q := `INSERT INTO decisions
		(cycle_id, symbol, status, reason, action, side, volume, stop_loss,
		 take_profit, strategy, regime, score, candle_close, idempotency_key)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	var (
		action, side, strategy, regimeLabel, key string
		volume, sl, tp, score                    float64
		candleClose                              *time.Time
	)
	if d := o.Decision; d != nil {
		action = string(d.Action)
		side = string(d.Side)
		strategy = d.StrategyID
		regimeLabel = string(d.Regime)
		key = d.IdempotencyKey
		volume = d.Volume
		sl = d.StopLoss
		tp = d.TakeProf
		score = d.Score
		cc := d.CandleClose
		candleClose = &cc
	}

	_, err := s.db.ExecContext(ctx, q,
		cycleID, o.Symbol, o.Status, o.Reason, action, side, volume, sl, tp,
		strategy, regimeLabel, score, candleClose, key)
	return err
}

// AttemptTransition appends one execution state change. Called from the
// executor's goroutines; failures are logged and swallowed so persistence
// trouble never blocks order handling.
func (s *Store) AttemptTransition(a exec.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	q := `INSERT INTO attempt_transitions
		(idempotency_key, status, attempts, last_error, order_id, symbol, side, volume)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := s.db.ExecContext(ctx, q,
		a.Key, string(a.Status), a.Attempts, a.LastError, a.OrderID,
		a.Decision.Symbol, string(a.Decision.Side), a.Decision.Volume)
	if err != nil {
		s.log.Error().Err(err).Str("key", a.Key).Str("status", string(a.Status)).
			Msg("failed to persist attempt transition")
	}
}

// Heartbeat appends one session probe result.
func (s *Store) Heartbeat(ok bool, snap conn.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	q := `INSERT INTO heartbeats (ok, trade_mode, balance, equity, checked_at)
	      VALUES ($1,$2,$3,$4,$5)`
	_, err := s.db.ExecContext(ctx, q,
		ok, string(snap.TradeMode), snap.Balance, snap.Equity, snap.CheckedAt)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to persist heartbeat")
	}
}

// UnresolvedKeys returns keys whose latest transition is non-terminal.
// These are the candidates for startup reconciliation.
func (s *Store) UnresolvedKeys(ctx context.Context) ([]string, error) {
	q := `SELECT t.idempotency_key
	      FROM attempt_transitions t
	      JOIN (
		SELECT idempotency_key, MAX(id) AS max_id
		FROM attempt_transitions
		GROUP BY idempotency_key
	      ) last ON last.max_id = t.id
	      WHERE t.status IN ('pending', 'submitted')
	      ORDER BY t.idempotency_key`

	var keys []string
	if err := s.db.SelectContext(ctx, &keys, q); err != nil {
		return nil, err
	}
	return keys, nil
}

// RecentKeys returns idempotency keys recorded within the window, newest
// first. Diagnostics only.
func (s *Store) RecentKeys(ctx context.Context, window time.Duration) ([]string, error) {
	q := `SELECT DISTINCT idempotency_key FROM attempt_transitions
	      WHERE created_at > $1 ORDER BY idempotency_key`
	var keys []string
	err := s.db.SelectContext(ctx, &keys, q, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	return keys, nil
}
