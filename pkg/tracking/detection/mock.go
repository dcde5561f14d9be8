package detection

import (
	"sync"

	"github.com/teslashibe/go-rover/pkg/camera"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, Detect returns no detections.
	DetectFunc func(frame camera.Frame) ([]Detection, error)

	mu     sync.Mutex
	calls  int
	closed bool
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(frame camera.Frame) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(frame)
	}
	return nil, nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
