package perception

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/debug"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// ErrAlreadyStarted is returned by Start on a worker that is not idle.
var ErrAlreadyStarted = errors.New("perception: worker already started")

// State is the worker lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Stats are the worker's running counters.
type Stats struct {
	Cycles          uint64        `json:"cycles"`
	Published       uint64        `json:"published"`
	CaptureErrors   uint64        `json:"capture_errors"`
	InferenceErrors uint64        `json:"inference_errors"`
	TargetsFound    uint64        `json:"targets_found"`
	LastCycle       time.Duration `json:"last_cycle_ns"`
	LastError       string        `json:"last_error,omitempty"`
	State           string        `json:"state"`
}

// Worker captures frames, runs the detector and publishes the first
// qualifying target to a SharedState, on its own goroutine.
//
// The worker owns the camera for its whole life. Stop is cooperative: the
// in-flight capture+inference always completes before the goroutine exits.
type Worker struct {
	source   camera.Source
	detector detection.Detector
	state    *SharedState
	config   Config
	logger   atomic.Pointer[slog.Logger]

	mu     sync.Mutex
	life   State
	cancel context.CancelFunc
	done   chan struct{}
	stats  Stats
}

// NewWorker creates a worker. Nothing runs until Start.
func NewWorker(src camera.Source, det detection.Detector, state *SharedState, cfg Config) *Worker {
	w := &Worker{
		source:   src,
		detector: det,
		state:    state,
		config:   cfg,
		done:     make(chan struct{}),
	}
	w.logger.Store(log.With("component", "perception"))
	return w
}

// SetLogger replaces the worker's logger. Safe while the worker runs.
func (w *Worker) SetLogger(l *slog.Logger) {
	if l == nil {
		l = log.Discard()
	}
	w.logger.Store(l)
}

// State returns the shared state the worker publishes to.
func (w *Worker) State() *SharedState {
	return w.state
}

// Lifecycle returns the current lifecycle state.
func (w *Worker) Lifecycle() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.life
}

// Start launches the worker goroutine. It runs until Stop is called or ctx
// is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.life != StateIdle {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.life = StateRunning

	go w.run(ctx)

	w.logger.Load().Info("perception worker started",
		"target", w.config.TargetLabel, "min_confidence", w.config.MinConfidence)
	return nil
}

// Stop requests a stop and blocks until the worker goroutine has exited.
// Latency is bounded by one capture+inference cycle. Safe to call more
// than once and on a worker that was never started.
func (w *Worker) Stop() {
	w.mu.Lock()
	switch w.life {
	case StateIdle:
		w.life = StateStopped
		close(w.done)
		w.mu.Unlock()
		return
	case StateRunning:
		w.life = StateStopping
		w.cancel()
	}
	w.mu.Unlock()

	<-w.done
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats returns a copy of the running counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.State = w.life.String()
	return s
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.life = StateStopped
		if w.cancel != nil {
			w.cancel()
		}
		close(w.done)
		stats := w.stats
		w.mu.Unlock()

		w.logger.Load().Info("perception worker stopped",
			"cycles", stats.Cycles, "published", stats.Published,
			"capture_errors", stats.CaptureErrors, "inference_errors", stats.InferenceErrors)
	}()

	for ctx.Err() == nil {
		start := time.Now()
		err := w.cycle()
		elapsed := time.Since(start)

		w.mu.Lock()
		w.stats.Cycles++
		w.stats.LastCycle = elapsed
		cycles := w.stats.Cycles
		w.mu.Unlock()

		if w.config.LogEvery > 0 && cycles%w.config.LogEvery == 0 {
			s := w.Stats()
			w.logger.Load().Info("perception heartbeat",
				"cycles", s.Cycles, "published", s.Published, "targets", s.TargetsFound,
				"errors", s.CaptureErrors+s.InferenceErrors, "last_cycle", s.LastCycle)
		}

		var pause time.Duration
		if err != nil {
			pause = w.config.ErrorBackoff
		} else if w.config.MinCycle > elapsed {
			pause = w.config.MinCycle - elapsed
		}
		if pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
		}
	}
}

// cycle runs one capture -> detect -> select -> publish iteration.
// On failure nothing is published, so readers keep the previous pair.
func (w *Worker) cycle() error {
	frame, err := w.source.GetFrame()
	if err != nil {
		w.recordError(err, true)
		w.logger.Load().Warn("frame capture failed", "error", err)
		return err
	}

	dets, err := w.detect(frame)
	if err != nil {
		w.recordError(err, false)
		w.logger.Load().Warn("detection failed", "frame", frame.Seq, "error", err)
		return err
	}

	target := detection.SelectFirst(dets, w.config.TargetLabel, w.config.MinConfidence)
	seq := w.state.Publish(frame, target)

	w.mu.Lock()
	w.stats.Published++
	if target != nil {
		w.stats.TargetsFound++
	}
	w.mu.Unlock()

	if target != nil {
		cx, cy := target.Center()
		debug.TrackLog("target %s %.2f at (%.0f,%.0f) publish=%d", target.Label, target.Confidence, cx, cy, seq)
	}
	return nil
}

// detect shields the loop from a panicking backend.
func (w *Worker) detect(frame camera.Frame) (dets []detection.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: detector panic: %v", detection.ErrInference, r)
		}
	}()
	return w.detector.Detect(frame)
}

func (w *Worker) recordError(err error, capture bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if capture {
		w.stats.CaptureErrors++
	} else {
		w.stats.InferenceErrors++
	}
	w.stats.LastError = err.Error()
}
