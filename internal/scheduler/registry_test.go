package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
)

func TestRegistryIDsUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tm, err := r.Create(board.TextMessage("x"), time.Minute, "")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if seen[tm.ID] {
			t.Fatalf("duplicate timer id %s", tm.ID)
		}
		seen[tm.ID] = true
	}
}

func TestRegistryCreateRejectsDuration(t *testing.T) {
	r := NewRegistry()
	for _, d := range []time.Duration{0, -time.Minute, maxDuration + time.Millisecond} {
		if _, err := r.Create(board.TextMessage("x"), d, ""); !IsInvalidDuration(err) {
			t.Fatalf("duration %v: want invalid duration error, got %v", d, err)
		}
	}
}

func TestRegistryCancelTransitions(t *testing.T) {
	r := NewRegistry()
	tm, err := r.Create(board.TextMessage("x"), time.Minute, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.Cancel(tm.ID) {
		t.Fatal("cancel returned false for a scheduled timer")
	}
	got, ok := r.Get(tm.ID)
	if !ok || got.Status != StatusCancelled {
		t.Fatalf("status = %q (found=%v), want cancelled", got.Status, ok)
	}
	if r.Cancel(tm.ID) {
		t.Fatal("second cancel returned true")
	}
	if r.Cancel("timer_0") {
		t.Fatal("cancel of unknown id returned true")
	}
}

func TestRegistryFireExactlyOnce(t *testing.T) {
	r := NewRegistry()
	tm, err := r.Create(board.TextMessage("x"), time.Minute, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fired, ok := r.fire(tm.ID)
	if !ok || fired.Status != StatusFired {
		t.Fatalf("fire = (%q, %v), want fired copy", fired.Status, ok)
	}
	if _, ok := r.fire(tm.ID); ok {
		t.Fatal("second fire succeeded")
	}
	if r.Cancel(tm.ID) {
		t.Fatal("cancel succeeded after fire")
	}

	r.finalize(tm.ID, StatusExpiredRestored)
	got, ok := r.Get(tm.ID)
	if !ok || got.Status != StatusExpiredRestored {
		t.Fatalf("status = %q (found=%v), want expired-restored", got.Status, ok)
	}
}

func TestRegistryFinalizeIgnoresNonTerminal(t *testing.T) {
	r := NewRegistry()
	tm, _ := r.Create(board.TextMessage("x"), time.Minute, "")
	r.fire(tm.ID)
	r.finalize(tm.ID, StatusScheduled)
	got, _ := r.Get(tm.ID)
	if got.Status != StatusFired {
		t.Fatalf("status = %q, want fired after non-terminal finalize", got.Status)
	}
}

func TestRegistryPrepareRecordsBinding(t *testing.T) {
	r := NewRegistry()
	tm, _ := r.Create(board.TextMessage("x"), time.Minute, "")
	r.prepare(tm.ID, "temp_"+tm.ID, true, "msg-7")
	got, _ := r.Get(tm.ID)
	if got.RestoreSlot != "temp_"+tm.ID || !got.Transient || got.ExpectedDisplayID != "msg-7" {
		t.Fatalf("prepare did not record binding: %+v", got)
	}
}

func TestRegistryListOnlyScheduled(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Create(board.TextMessage("a"), time.Minute, "")
	b, _ := r.Create(board.TextMessage("b"), time.Minute, "")
	r.Cancel(a.ID)

	timers := r.List()
	if len(timers) != 1 || timers[0].ID != b.ID {
		t.Fatalf("list = %v, want only %s", timers, b.ID)
	}
	if n := r.ActiveCount(); n != 1 {
		t.Fatalf("active count = %d, want 1", n)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	tm, _ := r.Create(board.TextMessage("x"), time.Minute, "")
	r.remove(tm.ID)
	if _, ok := r.Get(tm.ID); ok {
		t.Fatal("removed timer still present")
	}
}

// Cancel and the fire callback race for the transition out of scheduled;
// exactly one side must win per timer.
func TestRegistryCancelFireRace(t *testing.T) {
	r := NewRegistry()
	const n = 50

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tm, err := r.Create(board.TextMessage("x"), time.Minute, "")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, tm.ID)
	}

	var fired sync.Map
	cancelled := make([]bool, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		r.Arm(id, time.Millisecond, func(id string) {
			if _, ok := r.fire(id); ok {
				fired.Store(id, true)
				r.finalize(id, StatusExpiredSkipped)
			}
		})
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			cancelled[i] = r.Cancel(id)
		}(i, id)
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	for i, id := range ids {
		_, wasFired := fired.Load(id)
		if wasFired == cancelled[i] {
			t.Fatalf("timer %s: fired=%v cancelled=%v, want exactly one", id, wasFired, cancelled[i])
		}
	}
}
