package input

import "errors"

var (
	// ErrNoDevice is returned when no gamepad is open.
	ErrNoDevice = errors.New("input: no gamepad connected")

	// ErrDisconnected is returned when the open gamepad stops responding.
	ErrDisconnected = errors.New("input: gamepad disconnected")

	// ErrInvalidName is returned for unknown axis or button names.
	ErrInvalidName = errors.New("input: invalid control name")
)

// State is a snapshot of a device. Axes are normalized to [-1, 1].
type State struct {
	Axes    []float64
	Buttons uint32
}

// Button reports whether button i is held.
func (s State) Button(i int) bool {
	if i < 0 || i >= 32 {
		return false
	}
	return s.Buttons&(1<<uint(i)) != 0
}

// Backend enumerates and opens devices.
type Backend interface {
	// Count returns how many devices are currently attached.
	Count() (int, error)
	// Open opens the index-th attached device.
	Open(index int) (Device, error)
}

// Device is one opened gamepad.
type Device interface {
	Name() string
	Read() (State, error)
	Close() error
}
