package scheduler

import (
	"time"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
)

// Status is the lifecycle state of a timer. A timer leaves StatusScheduled
// exactly once, to StatusCancelled or through StatusFired to one of the
// expired states, and is immutable afterward.
type Status string

const (
	StatusScheduled       Status = "scheduled"
	StatusFired           Status = "fired"
	StatusCancelled       Status = "cancelled"
	StatusExpiredRestored Status = "expired-restored"
	StatusExpiredSkipped  Status = "expired-skipped"
)

// terminal reports whether no further transition is possible.
func (s Status) terminal() bool {
	switch s {
	case StatusCancelled, StatusExpiredRestored, StatusExpiredSkipped:
		return true
	}
	return false
}

// Timer is one scheduled temporary board message.
type Timer struct {
	ID       string
	Message  board.Message
	Duration time.Duration

	// RestoreSlot names the snapshot to put back at expiry. Transient
	// marks slots the scheduler created itself, which are deleted once
	// the timer reaches a terminal state.
	RestoreSlot string
	Transient   bool

	// ExpectedDisplayID is the identity the board write returned for this
	// timer's message. At expiry the restore happens only if the board
	// still reports this identity.
	ExpectedDisplayID string

	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time

	delay      *time.Timer
	finishedAt time.Time
}

// Remaining returns the time left until expiry, never negative.
func (t *Timer) Remaining() time.Duration {
	d := time.Until(t.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}
