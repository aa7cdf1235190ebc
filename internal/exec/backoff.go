package exec

import (
	"math/rand"
	"sync"
	"time"
)

// backoff computes the bounded exponential retry delay with jitter.
// Jitter is half-range: delay/2 + rand(delay/2), so delays never collapse
// to zero and never exceed the cap.
type backoff struct {
	base time.Duration
	max  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func newBackoff(base, max time.Duration, seed int64) *backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, rng: rand.New(rand.NewSource(seed))}
}

// delay returns the wait before retry number n (n starts at 1).
func (b *backoff) delay(n int) time.Duration {
	d := b.base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= b.max {
			d = b.max
			break
		}
	}
	b.mu.Lock()
	jittered := d/2 + time.Duration(b.rng.Int63n(int64(d/2)+1))
	b.mu.Unlock()
	return jittered
}
