package input

import (
	"errors"
	"sync"
)

// MockBackend is an in-memory Backend. The attached device count and the
// device state are set by the test.
type MockBackend struct {
	mu       sync.Mutex
	count    int
	countErr error
	openErr  error
	device   *MockDevice
	opens    int
	counts   int
}

var _ Backend = (*MockBackend)(nil)

// NewMockBackend creates a backend with n devices attached, all backed by
// one MockDevice with the Xbox layout at rest.
func NewMockBackend(n int) *MockBackend {
	return &MockBackend{count: n, device: NewMockDevice()}
}

// SetCount changes how many devices are attached.
func (m *MockBackend) SetCount(n int) {
	m.mu.Lock()
	m.count = n
	m.mu.Unlock()
}

// FailCount makes Count return err. Nil clears it.
func (m *MockBackend) FailCount(err error) {
	m.mu.Lock()
	m.countErr = err
	m.mu.Unlock()
}

// FailOpen makes Open return err. Nil clears it.
func (m *MockBackend) FailOpen(err error) {
	m.mu.Lock()
	m.openErr = err
	m.mu.Unlock()
}

// Device returns the device handed out by Open.
func (m *MockBackend) Device() *MockDevice {
	return m.device
}

// Count implements Backend.
func (m *MockBackend) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts++
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.count, nil
}

// Open implements Backend.
func (m *MockBackend) Open(index int) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	if index >= m.count {
		return nil, ErrNoDevice
	}
	m.opens++
	m.device.reopen()
	return m.device, nil
}

// Opens returns how many times Open succeeded.
func (m *MockBackend) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Counts returns how many times Count was called.
func (m *MockBackend) Counts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts
}

// MockDevice is a settable gamepad. Triggers start at rest (-1).
type MockDevice struct {
	mu      sync.Mutex
	state   State
	readErr error
	closed  bool
	closes  int
}

// NewMockDevice returns a device with six axes and both triggers released.
func NewMockDevice() *MockDevice {
	axes := make([]float64, 6)
	axes[XboxAxes[AxisRT]] = -1
	axes[XboxAxes[AxisLT]] = -1
	return &MockDevice{state: State{Axes: axes}}
}

// SetAxis sets axis i.
func (d *MockDevice) SetAxis(i int, v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.state.Axes) <= i {
		d.state.Axes = append(d.state.Axes, 0)
	}
	d.state.Axes[i] = v
}

// SetNamed sets an axis by its Xbox name.
func (d *MockDevice) SetNamed(name string, v float64) {
	d.SetAxis(XboxAxes[name], v)
}

// SetButton presses or releases button i.
func (d *MockDevice) SetButton(i int, down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if down {
		d.state.Buttons |= 1 << uint(i)
	} else {
		d.state.Buttons &^= 1 << uint(i)
	}
}

// FailRead makes Read return err. Nil clears it.
func (d *MockDevice) FailRead(err error) {
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
}

// Name implements Device.
func (d *MockDevice) Name() string {
	return "Mock Xbox Controller"
}

// Read implements Device.
func (d *MockDevice) Read() (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return State{}, errors.New("mock device closed")
	}
	if d.readErr != nil {
		return State{}, d.readErr
	}
	axes := make([]float64, len(d.state.Axes))
	copy(axes, d.state.Axes)
	return State{Axes: axes, Buttons: d.state.Buttons}, nil
}

// Close implements Device.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.closes++
	return nil
}

// Closes returns how many times Close was called.
func (d *MockDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *MockDevice) reopen() {
	d.mu.Lock()
	d.closed = false
	d.mu.Unlock()
}
