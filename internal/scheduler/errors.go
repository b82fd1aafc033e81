package scheduler

import "time"

// invalidDurationError rejects non-positive or absurd timer durations at
// schedule time.
type invalidDurationError struct{ d time.Duration }

func (e invalidDurationError) Error() string { return "invalid timer duration: " + e.d.String() }

// IsInvalidDuration reports whether err indicates a rejected duration.
func IsInvalidDuration(err error) bool {
	_, ok := err.(invalidDurationError)
	return ok
}

// restoreTargetMissingError signals that the snapshot a timer was meant to
// restore no longer exists at expiry.
type restoreTargetMissingError struct{ slot string }

func (e restoreTargetMissingError) Error() string { return "restore target missing: " + e.slot }

// ErrRestoreTargetMissing constructs a restoreTargetMissingError.
func ErrRestoreTargetMissing(slot string) error { return restoreTargetMissingError{slot: slot} }

// IsRestoreTargetMissing reports whether err indicates a missing restore slot.
func IsRestoreTargetMissing(err error) bool {
	_, ok := err.(restoreTargetMissingError)
	return ok
}

// displayWriteError wraps a board I/O failure during schedule or expiry.
type displayWriteError struct {
	op  string
	err error
}

func (e displayWriteError) Error() string { return "display " + e.op + " failed: " + e.err.Error() }
func (e displayWriteError) Unwrap() error { return e.err }

// ErrDisplayWrite constructs a displayWriteError for the given operation.
func ErrDisplayWrite(op string, err error) error { return displayWriteError{op: op, err: err} }

// IsDisplayWriteFailed reports whether err indicates board I/O failure.
func IsDisplayWriteFailed(err error) bool {
	_, ok := err.(displayWriteError)
	return ok
}
