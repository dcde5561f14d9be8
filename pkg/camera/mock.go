package camera

import (
	"sync"
	"time"
)

// MockSource implements Source for testing.
// Frames are synthesized at the configured size; behaviour can be
// customized via function fields.
type MockSource struct {
	// GetFrameFunc, if set, replaces the default synthetic capture.
	GetFrameFunc func(seq uint64) (Frame, error)

	// Delay is slept inside every GetFrame to emulate exposure time.
	Delay time.Duration

	Width  int
	Height int

	mu       sync.Mutex
	seq      uint64
	released int
}

// NewMockSource creates a mock camera producing blank BGR frames.
func NewMockSource(width, height int) *MockSource {
	return &MockSource{Width: width, Height: height}
}

// GetFrame returns the next synthetic frame.
func (m *MockSource) GetFrame() (Frame, error) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	if m.released > 0 {
		m.mu.Unlock()
		return Frame{}, ErrReleased
	}
	m.seq++
	seq := m.seq
	fn := m.GetFrameFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(seq)
	}
	return Frame{
		Data:      make([]byte, m.Width*m.Height*3),
		Width:     m.Width,
		Height:    m.Height,
		Format:    FormatBGR24,
		Timestamp: time.Now(),
		Seq:       seq,
	}, nil
}

// Release marks the source released.
func (m *MockSource) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}

// Captures returns how many frames were requested.
func (m *MockSource) Captures() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Released returns how many times Release was called.
func (m *MockSource) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}
