package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager() (*Manager, *MemoryStore) {
	mem := NewMemoryStore()
	return NewManager(mem, zerolog.Nop()), mem
}

func TestSaveLoadRoundtrip(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	layout := [][]int{{1, 2, 3}, {4, 5, 6}}
	saved, err := m.Save(ctx, "backup", layout, "msg-42")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.SavedAt == 0 {
		t.Fatal("save did not stamp saved_at")
	}

	got, err := m.Load(ctx, "backup")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Layout, layout) {
		t.Fatalf("layout = %v, want %v", got.Layout, layout)
	}
	if got.OriginalID != "msg-42" {
		t.Fatalf("original id = %q, want msg-42", got.OriginalID)
	}
	if got.SavedAt != saved.SavedAt {
		t.Fatalf("saved_at = %d, want %d", got.SavedAt, saved.SavedAt)
	}
}

func TestLoadMissingSlot(t *testing.T) {
	m, _ := newTestManager()
	if _, err := m.Load(context.Background(), "nope"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("want ErrSlotNotFound, got %v", err)
	}
}

func TestLoadEmptyPayloadIsMissing(t *testing.T) {
	// A retained-message tombstone arrives as an empty payload.
	m, mem := newTestManager()
	ctx := context.Background()
	if err := mem.Set(ctx, "gone", []byte{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := m.Load(ctx, "gone"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("want ErrSlotNotFound, got %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Save(ctx, "s", [][]int{{1}}, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	existed, err := m.Delete(ctx, "s")
	if err != nil || !existed {
		t.Fatalf("delete = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = m.Delete(ctx, "s")
	if err != nil || existed {
		t.Fatalf("second delete = (%v, %v), want (false, nil)", existed, err)
	}
	if _, err := m.Load(ctx, "s"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("want ErrSlotNotFound after delete, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Save(ctx, "s", [][]int{{1}}, "a"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.Save(ctx, "s", [][]int{{2}}, "b"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := m.Load(ctx, "s")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Layout, [][]int{{2}}) || got.OriginalID != "b" {
		t.Fatalf("load = %+v, want the overwritten snapshot", got)
	}
}

func TestConcurrentSaveDeleteLoad(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := m.Save(ctx, "hot", [][]int{{1, 2}, {3, 4}}, "id"); err != nil {
				t.Errorf("save: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := m.Delete(ctx, "hot"); err != nil {
				t.Errorf("delete: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			snap, err := m.Load(ctx, "hot")
			if err != nil {
				if !errors.Is(err, ErrSlotNotFound) {
					t.Errorf("load: %v", err)
				}
				return
			}
			if !reflect.DeepEqual(snap.Layout, [][]int{{1, 2}, {3, 4}}) {
				t.Errorf("torn read: %v", snap.Layout)
			}
		}()
	}
	wg.Wait()
}
