package board

import (
	"context"
	"fmt"
	"strings"
)

// Message is a board payload: either plain text or a full layout of
// character codes. Exactly one of the two forms is set.
type Message struct {
	Text   string
	Layout [][]int
}

// TextMessage wraps a plain text payload.
func TextMessage(s string) Message { return Message{Text: s} }

// LayoutMessage wraps a layout array payload.
func LayoutMessage(l [][]int) Message { return Message{Layout: l} }

// IsLayout reports whether the message carries a layout array.
func (m Message) IsLayout() bool { return m.Layout != nil }

// DisplayPort is the board abstraction the scheduler and handlers write
// through. Show returns an opaque identity that changes on every distinct
// write; Read returns the current content and its identity. Clients whose
// API exposes no server-side message id (the Local API) substitute a
// content hash for the identity, which satisfies the same "did anything
// write in between" comparison.
type DisplayPort interface {
	Show(ctx context.Context, msg Message) (string, error)
	Read(ctx context.Context) (Message, string, error)
}

// Type describes the physical board dimensions.
type Type struct {
	Name string
	Rows int
	Cols int
}

var (
	// Standard is the flagship 6x22 Vestaboard.
	Standard = Type{Name: "standard", Rows: 6, Cols: 22}
	// Note is the 3x15 Vestaboard Note.
	Note = Type{Name: "note", Rows: 3, Cols: 15}
)

// TypeFromString parses a board type name, defaulting to standard.
func TypeFromString(v string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "standard":
		return Standard, nil
	case "note":
		return Note, nil
	default:
		return Type{}, fmt.Errorf("unknown board type %q (valid: standard, note)", v)
	}
}

func (t Type) String() string { return fmt.Sprintf("%s (%dx%d)", t.Name, t.Rows, t.Cols) }
