package observ

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Counters and gauges for the decision/execution pipeline. Registered on
// the default registry so promhttp picks them up without extra wiring.
var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_cycles_total",
		Help: "Completed decision cycles.",
	})

	CycleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradebot_cycle_latency_seconds",
		Help:    "Wall time of a full decision cycle.",
		Buckets: prometheus.DefBuckets,
	})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_decisions_total",
		Help: "Decisions emitted by the composer, by outcome.",
	}, []string{"outcome"})

	OrderAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_order_attempts_total",
		Help: "Order attempt terminal transitions, by status.",
	}, []string{"status"})

	SafetyRejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_safety_gate_rejects_total",
		Help: "Submissions rejected by the paper-only safety gate.",
	})

	DuplicateKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_duplicate_keys_total",
		Help: "Decisions dropped because their idempotency key was already live.",
	})

	HeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_heartbeat_failures_total",
		Help: "Failed broker heartbeat probes.",
	})

	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradebot_broker_connected",
		Help: "1 while the broker session is live.",
	})

	RankedSelected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradebot_ranked_selected",
		Help: "Size of the diversified top-K selection in the last cycle.",
	})
)

// ServeMetrics exposes /metrics until ctx is cancelled. Errors are logged,
// never fatal: metrics are best-effort.
func ServeMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
	}
}
