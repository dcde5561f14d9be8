package actuation

import (
	"errors"
	"fmt"
)

// Sentinel errors for actuation.
var (
	// ErrHardwareWrite is matched by every driver write failure.
	ErrHardwareWrite = errors.New("actuation: hardware write failed")

	// ErrClosed is returned by setters after Close.
	ErrClosed = errors.New("actuation: bus closed")

	// ErrUnsupportedChannel is returned by a driver asked to drive a channel
	// it is not wired to.
	ErrUnsupportedChannel = errors.New("actuation: unsupported channel")
)

// WriteError wraps a driver failure with the channel it happened on.
type WriteError struct {
	Channel Channel
	Value   int
	Err     error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("actuation [%s]: write %d: %v", e.Channel, e.Value, e.Err)
}

// Unwrap returns the driver error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrHardwareWrite) hold for every WriteError.
func (e *WriteError) Is(target error) bool {
	return target == ErrHardwareWrite
}
