package scheduler

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
)

const (
	// Schedule rejects durations above this as a defensive bound.
	maxDuration = 24 * time.Hour

	// Terminal timers remain queryable for this long so a List or Get
	// racing with the transition can still observe the outcome. Eviction
	// happens lazily on the next mutating call.
	finishedGrace = time.Minute
)

// Registry is the concurrent table of timers keyed by id. All status
// transitions happen under its lock, which is what makes Cancel and the
// fire path race for exactly-once execution: only the caller that wins
// the transition out of StatusScheduled proceeds.
type Registry struct {
	mu        sync.Mutex
	timers    map[string]*Timer
	lastStamp int64
}

func NewRegistry() *Registry {
	return &Registry{timers: make(map[string]*Timer)}
}

// nextID allocates a time-derived id, bumped monotonically so ids are
// never reused within the process even when allocations share a clock tick.
func (r *Registry) nextID(now time.Time) string {
	stamp := now.UnixMilli()
	if stamp <= r.lastStamp {
		stamp = r.lastStamp + 1
	}
	r.lastStamp = stamp
	return "timer_" + strconv.FormatInt(stamp, 10)
}

// Create allocates a timer in scheduled state. The timer is not armed yet;
// the scheduler arms it after the board write succeeds.
func (r *Registry) Create(msg board.Message, d time.Duration, restoreSlot string) (Timer, error) {
	if d <= 0 || d > maxDuration {
		return Timer{}, invalidDurationError{d: d}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(time.Now())

	now := time.Now()
	t := &Timer{
		ID:          r.nextID(now),
		Message:     msg,
		Duration:    d,
		RestoreSlot: restoreSlot,
		Status:      StatusScheduled,
		CreatedAt:   now,
		ExpiresAt:   now.Add(d),
	}
	r.timers[t.ID] = t
	activeTimers.Inc()
	return *t, nil
}

// prepare records the snapshot binding and the identity of this timer's
// board write before the timer is armed.
func (r *Registry) prepare(id, restoreSlot string, transient bool, expectedID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok {
		return
	}
	t.RestoreSlot = restoreSlot
	t.Transient = transient
	t.ExpectedDisplayID = expectedID
}

// Arm schedules onFire to run once after d, unless the timer is cancelled
// first. The expiry body itself re-checks the status transition, so a
// delayed callback that lost the race to Cancel becomes a no-op.
func (r *Registry) Arm(id string, d time.Duration, onFire func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok || t.Status != StatusScheduled {
		return
	}
	t.ExpiresAt = time.Now().Add(d)
	t.delay = time.AfterFunc(d, func() { onFire(id) })
}

// Cancel transitions a scheduled timer to cancelled and suppresses its
// pending fire. Returns false if the timer does not exist or already left
// the scheduled state; idempotent and safe concurrently with expiry.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(time.Now())

	t, ok := r.timers[id]
	if !ok || t.Status != StatusScheduled {
		return false
	}
	t.Status = StatusCancelled
	t.finishedAt = time.Now()
	if t.delay != nil {
		t.delay.Stop()
	}
	activeTimers.Dec()
	timersCancelledTotal.Inc()
	return true
}

// CancelAll cancels every scheduled timer, for shutdown. Returns how many
// were cancelled.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.timers {
		if t.Status != StatusScheduled {
			continue
		}
		t.Status = StatusCancelled
		t.finishedAt = time.Now()
		if t.delay != nil {
			t.delay.Stop()
		}
		activeTimers.Dec()
		n++
	}
	return n
}

// Get returns a copy of the timer, or false if unknown (or evicted).
func (r *Registry) Get(id string) (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok {
		return Timer{}, false
	}
	return *t, true
}

// List returns copies of all timers still in scheduled state, ordered by
// creation time.
func (r *Registry) List() []Timer {
	r.mu.Lock()
	out := make([]Timer, 0, len(r.timers))
	for _, t := range r.timers {
		if t.Status == StatusScheduled {
			out = append(out, *t)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns the number of scheduled timers.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.timers {
		if t.Status == StatusScheduled {
			n++
		}
	}
	return n
}

// fire claims the expiry: it transitions scheduled -> fired and returns a
// copy. A false return means Cancel (or an earlier fire) won the race.
func (r *Registry) fire(id string) (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok || t.Status != StatusScheduled {
		return Timer{}, false
	}
	t.Status = StatusFired
	activeTimers.Dec()
	return *t, true
}

// finalize records the terminal outcome of a fired timer.
func (r *Registry) finalize(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok || !status.terminal() {
		return
	}
	t.Status = status
	t.finishedAt = time.Now()
	r.sweepLocked(time.Now())
}

// remove drops a timer outright, used when Schedule fails partway and must
// leave no state behind.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok {
		return
	}
	if t.Status == StatusScheduled {
		activeTimers.Dec()
	}
	if t.delay != nil {
		t.delay.Stop()
	}
	delete(r.timers, id)
}

// sweepLocked evicts terminal timers past the grace period. Caller holds r.mu.
func (r *Registry) sweepLocked(now time.Time) {
	for id, t := range r.timers {
		if t.Status.terminal() && !t.finishedAt.IsZero() && now.Sub(t.finishedAt) > finishedGrace {
			delete(r.timers, id)
		}
	}
}
