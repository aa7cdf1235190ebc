// Package notify delivers the loud events (confirmations, abandonments,
// safety violations) to a webhook. Delivery is fire-and-forget through a
// bounded queue: a slow or dead webhook drops messages, it never blocks
// the execution path.
package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/tradebot/internal/exec"
	"github.com/quantfold/tradebot/internal/observ"
)

// Config selects the webhook endpoint. Disabled when URL is empty.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Event is the webhook payload.
type Event struct {
	Kind      string    `json:"kind"` // order_confirmed | order_abandoned | safety_violation
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Volume    float64   `json:"volume"`
	Key       string    `json:"idempotency_key"`
	OrderID   string    `json:"order_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier implements exec.Alerter over a webhook.
type Notifier struct {
	cfg    Config
	client *http.Client
	queue  chan Event
	log    zerolog.Logger

	mu     sync.Mutex
	recent map[string]time.Time // dedupe hash -> last sent

	cancel context.CancelFunc
	done   chan struct{}
}

var _ exec.Alerter = (*Notifier)(nil)

const (
	queueDepth   = 256
	dedupeWindow = 60 * time.Second
)

// New starts the delivery worker. A Notifier with an empty URL is valid
// and drops everything silently.
func New(cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan Event, queueDepth),
		log:    observ.Component("notify"),
		recent: make(map[string]time.Time),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go n.worker(ctx)
	return n
}

// Close stops the worker. Queued events not yet delivered are dropped.
func (n *Notifier) Close() {
	n.cancel()
	<-n.done
}

// OrderConfirmed implements exec.Alerter.
func (n *Notifier) OrderConfirmed(a exec.Attempt) {
	n.enqueue(Event{
		Kind:    "order_confirmed",
		Symbol:  a.Decision.Symbol,
		Side:    string(a.Decision.Side),
		Volume:  a.Decision.Volume,
		Key:     a.Key,
		OrderID: a.OrderID,
	})
}

// OrderAbandoned implements exec.Alerter.
func (n *Notifier) OrderAbandoned(a exec.Attempt) {
	n.enqueue(Event{
		Kind:   "order_abandoned",
		Symbol: a.Decision.Symbol,
		Side:   string(a.Decision.Side),
		Volume: a.Decision.Volume,
		Key:    a.Key,
		Reason: a.LastError,
	})
}

// SafetyViolation implements exec.Alerter. Never deduplicated: every
// violation must be seen.
func (n *Notifier) SafetyViolation(a exec.Attempt, reason string) {
	n.push(Event{
		Kind:      "safety_violation",
		Symbol:    a.Decision.Symbol,
		Side:      string(a.Decision.Side),
		Volume:    a.Decision.Volume,
		Key:       a.Key,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

func (n *Notifier) enqueue(ev Event) {
	ev.Timestamp = time.Now().UTC()
	if n.duplicate(ev) {
		return
	}
	n.push(ev)
}

func (n *Notifier) push(ev Event) {
	if n.cfg.URL == "" {
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.log.Warn().Str("kind", ev.Kind).Str("key", ev.Key).
			Msg("notification queue full, event dropped")
	}
}

// duplicate suppresses a repeat of the same kind+key inside the window.
func (n *Notifier) duplicate(ev Event) bool {
	sum := sha256.Sum256([]byte(ev.Kind + "|" + ev.Key))
	h := hex.EncodeToString(sum[:8])

	n.mu.Lock()
	defer n.mu.Unlock()
	now := time.Now()
	if last, ok := n.recent[h]; ok && now.Sub(last) < dedupeWindow {
		return true
	}
	n.recent[h] = now
	for k, t := range n.recent {
		if now.Sub(t) > 2*dedupeWindow {
			delete(n.recent, k)
		}
	}
	return false
}

func (n *Notifier) worker(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Msg("failed to encode notification")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		n.log.Error().Err(err).Msg("failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Str("kind", ev.Kind).Msg("notification delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Str("kind", ev.Kind).
			Msg("webhook rejected notification")
	}
}
