package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/internal/decision"
	"github.com/quantfold/tradebot/internal/exec"
)

type capture struct {
	mu     sync.Mutex
	events []Event
}

func (c *capture) handler(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *capture) first() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func attempt(key string) exec.Attempt {
	return exec.Attempt{
		Key:     key,
		OrderID: "sim-000001",
		Decision: decision.Decision{
			Symbol: "EURUSD",
			Side:   "long",
			Volume: 0.25,
		},
	}
}

func TestDeliversConfirmation(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(cap.handler))
	defer srv.Close()

	n := New(Config{URL: srv.URL})
	defer n.Close()

	n.OrderConfirmed(attempt("cccc000000000001"))

	require.Eventually(t, func() bool { return cap.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	ev := cap.first()
	assert.Equal(t, "order_confirmed", ev.Kind)
	assert.Equal(t, "EURUSD", ev.Symbol)
	assert.Equal(t, "cccc000000000001", ev.Key)
	assert.Equal(t, "sim-000001", ev.OrderID)
}

func TestDeduplicatesRepeats(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(cap.handler))
	defer srv.Close()

	n := New(Config{URL: srv.URL})
	defer n.Close()

	for i := 0; i < 5; i++ {
		n.OrderConfirmed(attempt("cccc000000000002"))
	}

	require.Eventually(t, func() bool { return cap.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, cap.count(), "repeats inside the dedupe window must be dropped")
}

func TestSafetyViolationsAreNeverDeduplicated(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(cap.handler))
	defer srv.Close()

	n := New(Config{URL: srv.URL})
	defer n.Close()

	n.SafetyViolation(attempt("cccc000000000003"), "trading disabled by configuration")
	n.SafetyViolation(attempt("cccc000000000003"), "trading disabled by configuration")

	require.Eventually(t, func() bool { return cap.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "safety_violation", cap.first().Kind)
	assert.Contains(t, cap.first().Reason, "trading disabled")
}

func TestDisabledNotifierDropsSilently(t *testing.T) {
	n := New(Config{})
	defer n.Close()

	// Must not block or panic without an endpoint.
	n.OrderConfirmed(attempt("cccc000000000004"))
	n.OrderAbandoned(attempt("cccc000000000005"))
	n.SafetyViolation(attempt("cccc000000000006"), "x")
}

func TestDeadEndpointNeverBlocksCaller(t *testing.T) {
	n := New(Config{URL: "http://127.0.0.1:1", Timeout: 50 * time.Millisecond})
	defer n.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			n.OrderAbandoned(attempt("dddd000000000001"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier blocked the caller")
	}
}
