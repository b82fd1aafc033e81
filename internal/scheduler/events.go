package scheduler

// Event represents a timer lifecycle event.
type Event struct {
	Name    string
	TimerID string
	Fields  map[string]any
}

// Event names published by the scheduler.
const (
	EventScheduled = "timer_scheduled"
	EventCancelled = "timer_cancelled"
	EventRestored  = "timer_restored"
	EventSkipped   = "timer_skipped"
)

// EventPublisher receives events from the scheduler. Implementations
// should be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
