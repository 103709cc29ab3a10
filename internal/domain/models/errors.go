package models

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnreachable means the archive endpoint could not be
	// reached at all. Fatal for the whole run, not per signal.
	ErrBackendUnreachable = errors.New("archive backend unreachable: the archive is only reachable from inside the control network")

	// ErrNoMatch is returned when a pattern that must resolve to
	// exactly one signal resolves to none.
	ErrNoMatch = errors.New("pattern matched no signals")

	// ErrAmbiguousMatch is returned when a pattern that must resolve
	// to exactly one signal resolves to several.
	ErrAmbiguousMatch = errors.New("pattern matched more than one signal")

	// ErrInvalidInterval rejects malformed sampling intervals before
	// any network call is made.
	ErrInvalidInterval = errors.New("invalid sampling interval")
)

// SignalError wraps one signal's retrieval failure inside a batch.
// It never aborts sibling signals.
type SignalError struct {
	Signal string
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("signal %s: %v", e.Signal, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}
