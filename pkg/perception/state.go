// Package perception runs the capture-and-detect worker and publishes its
// latest result through a single-slot shared state.
package perception

import (
	"sync"
	"time"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// Snapshot is one consistent (frame, detection) pair.
// Target is nil when the frame held no qualifying target.
type Snapshot struct {
	Frame       camera.Frame
	Target      *detection.Detection
	Seq         uint64    // publish counter, 0 = nothing published yet
	PublishedAt time.Time // when the pair was published
}

// Valid reports whether anything has been published.
func (s Snapshot) Valid() bool {
	return s.Seq > 0
}

// Age returns how long ago the pair was published.
func (s Snapshot) Age(now time.Time) time.Duration {
	if !s.Valid() {
		return 0
	}
	return now.Sub(s.PublishedAt)
}

// SharedState is the single-slot holder for the most recent pair.
// The writer replaces the whole slot under the lock; readers copy it under
// the read lock and never hold the lock while doing work.
type SharedState struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSharedState creates an empty state.
func NewSharedState() *SharedState {
	return &SharedState{}
}

// Publish atomically replaces the slot and returns the new sequence number.
func (s *SharedState) Publish(frame camera.Frame, target *detection.Detection) uint64 {
	// Copy the detection so callers cannot mutate what readers see.
	if target != nil {
		t := *target
		target = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{
		Frame:       frame,
		Target:      target,
		Seq:         s.snap.Seq + 1,
		PublishedAt: time.Now(),
	}
	return s.snap.Seq
}

// Snapshot returns a copy of the latest pair.
func (s *SharedState) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap.Target != nil {
		t := *snap.Target
		snap.Target = &t
	}
	return snap
}

// Seq returns the last published sequence number.
func (s *SharedState) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Seq
}
