// Package scheduler implements timed board messages: a message is shown
// for a duration, and when the timer expires the previous board state is
// restored, but only if nothing else wrote to the board in the meantime.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
	"github.com/jfryman/vestaboard-mqtt/internal/store"
)

// Slot prefix for snapshots the scheduler creates for itself.
const transientSlotPrefix = "temp_"

// expiry runs with no caller to propagate deadlines from, so board and
// store calls at expiry get this budget.
const expiryTimeout = 30 * time.Second

// Config wires a Scheduler's collaborators. Display and States are
// required; Events defaults to a no-op publisher.
type Config struct {
	Display board.DisplayPort
	States  *store.Manager
	Events  EventPublisher
	Logger  zerolog.Logger
}

// Scheduler orchestrates schedule, cancel, and the expiry restore
// decision. It owns its registry; per-timer mutual exclusion lives there.
type Scheduler struct {
	reg     *Registry
	display board.DisplayPort
	states  *store.Manager
	events  EventPublisher
	log     zerolog.Logger
}

func New(cfg Config) *Scheduler {
	events := cfg.Events
	if events == nil {
		events = noopPublisher{}
	}
	return &Scheduler{
		reg:     NewRegistry(),
		display: cfg.Display,
		states:  cfg.States,
		events:  events,
		log:     cfg.Logger,
	}
}

// Schedule shows msg for d, then restores. With an empty restoreSlot the
// current board state is snapshotted first under a slot tied to the timer
// id; a named slot is assumed to exist already (a missing one surfaces at
// expiry, not here). Returns the timer id immediately; it never blocks
// for the duration. On any failure no timer and no snapshot are left
// behind.
func (s *Scheduler) Schedule(ctx context.Context, msg board.Message, d time.Duration, restoreSlot string) (string, error) {
	t, err := s.reg.Create(msg, d, restoreSlot)
	if err != nil {
		return "", err
	}

	slot := restoreSlot
	transient := false
	if slot == "" {
		slot = transientSlotPrefix + t.ID
		transient = true
		cur, curID, err := s.display.Read(ctx)
		if err != nil {
			s.reg.remove(t.ID)
			return "", ErrDisplayWrite("read", err)
		}
		if _, err := s.states.Save(ctx, slot, cur.Layout, curID); err != nil {
			s.reg.remove(t.ID)
			return "", fmt.Errorf("saving current state: %w", err)
		}
	}

	shownID, err := s.display.Show(ctx, msg)
	if err != nil {
		// Roll back so a failed schedule leaves no partial state.
		if transient {
			if _, derr := s.states.Delete(ctx, slot); derr != nil {
				s.log.Warn().Err(derr).Str("slot", slot).Msg("could not clean up transient snapshot")
			}
		}
		s.reg.remove(t.ID)
		return "", ErrDisplayWrite("write", err)
	}

	s.reg.prepare(t.ID, slot, transient, shownID)
	s.reg.Arm(t.ID, d, s.expire)

	timersScheduledTotal.Inc()
	s.events.Publish(Event{Name: EventScheduled, TimerID: t.ID, Fields: map[string]any{
		"duration":     d.String(),
		"restore_slot": slot,
	}})
	s.log.Info().
		Str("timer_id", t.ID).
		Dur("duration", d).
		Str("restore_slot", slot).
		Bool("transient", transient).
		Msg("scheduled timed message")
	return t.ID, nil
}

// Cancel stops a timer's pending restore. It does not touch the board:
// cancelling means "stop babysitting this timer", not "undo the message".
// Returns false for unknown or already-finished timers.
func (s *Scheduler) Cancel(id string) bool {
	ok := s.reg.Cancel(id)
	if !ok {
		return false
	}
	// A cancelled timer's transient snapshot will never be used again.
	if t, found := s.reg.Get(id); found && t.Transient && t.RestoreSlot != "" {
		ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
		defer cancel()
		if _, err := s.states.Delete(ctx, t.RestoreSlot); err != nil {
			s.log.Warn().Err(err).Str("slot", t.RestoreSlot).Msg("could not delete transient snapshot")
		}
	}
	s.events.Publish(Event{Name: EventCancelled, TimerID: id})
	s.log.Info().Str("timer_id", id).Msg("cancelled timer")
	return true
}

// List returns the timers still in scheduled state, oldest first.
func (s *Scheduler) List() []Timer { return s.reg.List() }

// Get looks up a single timer, including recently finished ones still in
// the grace window.
func (s *Scheduler) Get(id string) (Timer, bool) { return s.reg.Get(id) }

// ActiveCount returns the number of scheduled timers.
func (s *Scheduler) ActiveCount() int { return s.reg.ActiveCount() }

// CancelAll cancels every active timer; called on shutdown.
func (s *Scheduler) CancelAll() {
	if n := s.reg.CancelAll(); n > 0 {
		s.log.Info().Int("count", n).Msg("cancelled all active timers")
	}
}

// expire is the timer callback. The registry's fire transition guarantees
// it runs the expiry body at most once per timer, and never after a
// successful Cancel. Errors here have no caller to reach, so they end in
// logs and the timer's terminal status.
func (s *Scheduler) expire(id string) {
	t, ok := s.reg.fire(id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
	defer cancel()

	status := s.runExpiry(ctx, t)

	if t.Transient {
		// Transient snapshots die with their timer, whatever the outcome.
		if _, err := s.states.Delete(ctx, t.RestoreSlot); err != nil {
			s.log.Warn().Err(err).Str("slot", t.RestoreSlot).Msg("could not delete transient snapshot")
		}
	}

	s.reg.finalize(id, status)
	switch status {
	case StatusExpiredRestored:
		timersExpiredTotal.WithLabelValues("restored").Inc()
		s.events.Publish(Event{Name: EventRestored, TimerID: id})
	case StatusExpiredSkipped:
		timersExpiredTotal.WithLabelValues("skipped").Inc()
		s.events.Publish(Event{Name: EventSkipped, TimerID: id})
	}
}

// runExpiry makes the restore decision: restore only if the board still
// shows exactly what this timer wrote. Anything else claimed the board in
// the interim and must not be stomped on.
func (s *Scheduler) runExpiry(ctx context.Context, t Timer) Status {
	_, curID, err := s.display.Read(ctx)
	if err != nil {
		s.log.Error().Err(ErrDisplayWrite("read", err)).Str("timer_id", t.ID).Msg("expiry aborted")
		return StatusExpiredSkipped
	}

	if curID != t.ExpectedDisplayID {
		s.log.Info().
			Str("timer_id", t.ID).
			Str("expected_id", t.ExpectedDisplayID).
			Str("current_id", curID).
			Msg("board was overwritten, skipping restore")
		return StatusExpiredSkipped
	}

	snap, err := s.states.Load(ctx, t.RestoreSlot)
	if err != nil {
		if errors.Is(err, store.ErrSlotNotFound) {
			err = ErrRestoreTargetMissing(t.RestoreSlot)
		}
		s.log.Error().Err(err).Str("timer_id", t.ID).Msg("restore failed")
		return StatusExpiredSkipped
	}

	if _, err := s.display.Show(ctx, board.LayoutMessage(snap.Layout)); err != nil {
		s.log.Error().Err(ErrDisplayWrite("write", err)).Str("timer_id", t.ID).Msg("restore failed")
		return StatusExpiredSkipped
	}

	s.log.Info().Str("timer_id", t.ID).Str("restore_slot", t.RestoreSlot).Msg("restored previous board state")
	return StatusExpiredRestored
}
