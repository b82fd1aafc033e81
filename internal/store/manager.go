// Package store persists named board snapshots in the messaging bus's
// retained-message storage and provides per-slot-atomic save, load, and
// delete operations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSlotNotFound reports that no snapshot exists at the requested slot.
var ErrSlotNotFound = errors.New("slot not found")

// RetainedStore is the durable key-value storage backing snapshots.
// Implementations must survive process restart and be last-write-wins
// per key. The MQTT implementation maps keys to retained messages under
// the states topic.
type RetainedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// Manager owns the slot namespace. Save, Load, and Delete serialize per
// slot so a concurrent save and delete on the same slot cannot interleave
// into a torn read; operations on different slots do not block each other.
type Manager struct {
	store RetainedStore
	log   zerolog.Logger

	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func NewManager(store RetainedStore, logger zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		log:   logger,
		slots: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) slotLock(slot string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.slots[slot]
	if !ok {
		l = &sync.Mutex{}
		m.slots[slot] = l
	}
	return l
}

// Save writes a snapshot to slot, overwriting any previous one.
func (m *Manager) Save(ctx context.Context, slot string, layout [][]int, originID string) (Snapshot, error) {
	l := m.slotLock(slot)
	l.Lock()
	defer l.Unlock()

	snap := Snapshot{
		Layout:     layout,
		SavedAt:    time.Now().Unix(),
		OriginalID: originID,
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := m.store.Set(ctx, slot, payload); err != nil {
		return Snapshot{}, fmt.Errorf("saving slot %q: %w", slot, err)
	}
	m.log.Info().Str("slot", slot).Msg("saved board state")
	return snap, nil
}

// Load fetches the snapshot at slot. Returns ErrSlotNotFound if absent.
func (m *Manager) Load(ctx context.Context, slot string) (Snapshot, error) {
	l := m.slotLock(slot)
	l.Lock()
	defer l.Unlock()

	payload, ok, err := m.store.Get(ctx, slot)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading slot %q: %w", slot, err)
	}
	if !ok || len(payload) == 0 {
		return Snapshot{}, fmt.Errorf("slot %q: %w", slot, ErrSlotNotFound)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding slot %q: %w", slot, err)
	}
	return snap, nil
}

// Delete removes the snapshot at slot. Idempotent: returns false without
// error when the slot was already absent.
func (m *Manager) Delete(ctx context.Context, slot string) (bool, error) {
	l := m.slotLock(slot)
	l.Lock()
	defer l.Unlock()

	_, ok, err := m.store.Get(ctx, slot)
	if err != nil {
		return false, fmt.Errorf("checking slot %q: %w", slot, err)
	}
	if err := m.store.Delete(ctx, slot); err != nil {
		return false, fmt.Errorf("deleting slot %q: %w", slot, err)
	}
	if ok {
		m.log.Info().Str("slot", slot).Msg("deleted saved state")
	}
	return ok, nil
}
