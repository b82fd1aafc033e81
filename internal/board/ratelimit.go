package board

import (
	"context"
	"sync"
	"time"
)

// rateLimiter spaces out writes to respect the board API rate limit.
// Callers block until the limit clears; the scheduler is written to
// tolerate a Show call being delayed here (see cloud client docs).
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// wait blocks until a write is allowed or ctx is done. The send slot is
// claimed up front so concurrent callers queue behind each other.
func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	next := r.last.Add(r.interval)
	if next.Before(now) {
		next = now
	}
	r.last = next
	r.mu.Unlock()

	d := time.Until(next)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
