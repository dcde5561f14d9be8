package actuation

import "sync"

// Write is one recorded driver call.
type Write struct {
	Channel Channel
	Value   int
}

// MockDriver records every write for testing. Failures can be injected per
// channel.
type MockDriver struct {
	mu     sync.Mutex
	writes []Write
	fail   map[Channel]error
	closes int
}

// NewMockDriver creates a driver that accepts everything.
func NewMockDriver() *MockDriver {
	return &MockDriver{fail: make(map[Channel]error)}
}

// FailOn makes every write to ch return err. A nil err clears the failure.
func (m *MockDriver) FailOn(ch Channel, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, ch)
		return
	}
	m.fail[ch] = err
}

// SetPulse records a pulse write.
func (m *MockDriver) SetPulse(ch Channel, us int) error {
	return m.record(ch, us)
}

// SetAngle records an angle write.
func (m *MockDriver) SetAngle(ch Channel, deg int) error {
	return m.record(ch, deg)
}

func (m *MockDriver) record(ch Channel, v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[ch]; err != nil {
		return err
	}
	m.writes = append(m.writes, Write{Channel: ch, Value: v})
	return nil
}

// Close counts closes.
func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Last returns the last value written to ch and whether one exists.
func (m *MockDriver) Last(ch Channel) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.writes) - 1; i >= 0; i-- {
		if m.writes[i].Channel == ch {
			return m.writes[i].Value, true
		}
	}
	return 0, false
}

// Writes returns a copy of every recorded write.
func (m *MockDriver) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// Reset clears recorded writes.
func (m *MockDriver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// Closes returns how many times Close was called.
func (m *MockDriver) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
