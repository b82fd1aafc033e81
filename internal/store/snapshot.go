package store

import (
	"encoding/json"
	"fmt"
)

// Snapshot is a persisted board state. The wire format is the retained
// message payload: layout, save timestamp, and the message id that was
// current when the snapshot was taken (empty if unknown).
type Snapshot struct {
	Layout     [][]int `json:"layout"`
	SavedAt    int64   `json:"saved_at"`
	OriginalID string  `json:"original_id,omitempty"`
}

// UnmarshalJSON decodes a snapshot, tolerating legacy payloads where the
// layout was stored as a JSON-encoded string or wrapped in a "message"
// object.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Layout     json.RawMessage `json:"layout"`
		SavedAt    int64           `json:"saved_at"`
		OriginalID string          `json:"original_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Layout) == 0 {
		return fmt.Errorf("snapshot missing layout")
	}
	layout, err := normalizeLayout(raw.Layout)
	if err != nil {
		return err
	}
	s.Layout = layout
	s.SavedAt = raw.SavedAt
	s.OriginalID = raw.OriginalID
	return nil
}

func normalizeLayout(raw json.RawMessage) ([][]int, error) {
	var layout [][]int
	if err := json.Unmarshal(raw, &layout); err == nil {
		return layout, nil
	}

	// Legacy: layout stored as a JSON string.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &layout); err != nil {
			return nil, fmt.Errorf("decoding layout string: %w", err)
		}
		return layout, nil
	}

	// Legacy: Local API response stored verbatim with its "message" wrapper.
	var wrapped struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Message) > 0 {
		return normalizeLayout(wrapped.Message)
	}

	return nil, fmt.Errorf("layout has unrecognized format")
}
