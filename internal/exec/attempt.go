package exec

import (
	"time"

	"github.com/quantfold/tradebot/internal/decision"
)

// Status is the per-key order attempt state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected || s == StatusAbandoned
}

// Attempt is the execution record for one idempotency key. Owned by the
// Executor; snapshots handed out are copies.
type Attempt struct {
	Key       string
	Decision  decision.Decision
	Status    Status
	Attempts  int
	LastError string
	OrderID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
