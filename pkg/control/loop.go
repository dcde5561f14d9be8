package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/debug"
	"github.com/teslashibe/go-rover/pkg/input"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/telemetry"
	"github.com/teslashibe/go-rover/pkg/tracking"
)

// ErrNoTracker is returned by SetMode(ModeTracking) when no tracker is
// attached.
var ErrNoTracker = errors.New("control: tracking not available")

// Gamepad is what the loop reads each tick.
type Gamepad interface {
	UpdateConnectionStatus() bool
	WaitForConnection(ctx context.Context) error
	ReadThrottle() (float64, error)
	GetAxis(name string) (float64, error)
	GetButton(name string) (bool, error)
}

var _ Gamepad = (*input.Gamepad)(nil)

// Stats are loop counters.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	InputErrors uint64 `json:"input_errors"`
	Reconnects  uint64 `json:"reconnects"`
	Emitted     uint64 `json:"emitted"`
}

// Option configures a Loop.
type Option func(*Loop)

// WithTracking attaches the perception state and the pan/tilt controller.
func WithTracking(state *perception.SharedState, tracker *tracking.Controller) Option {
	return func(l *Loop) {
		l.shared = state
		l.tracker = tracker
	}
}

// WithStateLogger sends every vehicle state change to sink.
func WithStateLogger(sink telemetry.Sink) Option {
	return func(l *Loop) {
		l.sink = sink
	}
}

// WithLogger replaces the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// Loop drives the vehicle at a fixed rate. Drive axes always come from the
// gamepad; pan/tilt follow the current Mode.
//
// Run owns the gamepad, the tracker and the bus writes. Mode, State and
// Stats may be read from other goroutines.
type Loop struct {
	pad     Gamepad
	bus     actuation.Actuator
	config  Config
	logger  *slog.Logger
	shared  *perception.SharedState
	tracker *tracking.Controller
	sink    telemetry.Sink

	mode atomic.Int32

	mu    sync.RWMutex
	state actuation.VehicleState
	stats Stats

	emitted    bool
	toggleHeld bool
	mount      mountWrite
}

// mountWrite is the last pan/tilt command written and the angles it produced.
type mountWrite struct {
	valid     bool
	pan, tilt float64
	panAngle  int
	tiltAngle int
}

// New creates a loop. Without WithTracking the loop stays in ModeManual.
func New(pad Gamepad, bus actuation.Actuator, cfg Config, opts ...Option) *Loop {
	l := &Loop{
		pad:    pad,
		bus:    bus,
		config: cfg,
		logger: log.With("component", "control"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.StartTracking && l.canTrack() {
		l.mode.Store(int32(ModeTracking))
	}
	l.state = bus.State()
	return l
}

// Mode returns the current mode.
func (l *Loop) Mode() Mode {
	return Mode(l.mode.Load())
}

// SetMode switches mode. The tracker keeps its angles; the gamepad toggle
// recenters it on entry.
func (l *Loop) SetMode(m Mode) error {
	switch m {
	case ModeManual:
	case ModeTracking:
		if !l.canTrack() {
			return ErrNoTracker
		}
	default:
		return fmt.Errorf("control: unknown mode %d", int32(m))
	}

	prev := Mode(l.mode.Swap(int32(m)))
	if prev != m {
		l.logger.Info("mode changed", "from", prev.String(), "to", m.String())
	}
	return nil
}

// State returns the vehicle state after the last tick.
func (l *Loop) State() actuation.VehicleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Stats returns loop counters.
func (l *Loop) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// Period returns the tick interval in use.
func (l *Loop) Period() time.Duration {
	if l.canTrack() {
		return l.config.TrackingPeriod
	}
	return l.config.Period
}

func (l *Loop) canTrack() bool {
	return l.shared != nil && l.tracker != nil
}

// Run ticks until ctx is cancelled or a hardware write fails. Every exit
// path returns the vehicle to neutral. Cancellation returns nil.
func (l *Loop) Run(ctx context.Context) (err error) {
	if err := l.config.Validate(); err != nil {
		return err
	}

	defer func() {
		if nerr := l.bus.ReturnNeutral(); nerr != nil {
			l.logger.Error("return to neutral on exit failed", "error", nerr)
			err = errors.Join(err, nerr)
		}
		l.publishState(context.Background(), "shutdown")
		l.logger.Info("control loop stopped", "ticks", l.Stats().Ticks)
	}()

	period := l.Period()
	l.logger.Info("control loop started", "period", period, "mode", l.Mode().String())

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// tick runs one cycle. A returned error ends the loop.
func (l *Loop) tick(ctx context.Context) error {
	l.mu.Lock()
	l.stats.Ticks++
	ticks := l.stats.Ticks
	l.mu.Unlock()

	if !l.pad.UpdateConnectionStatus() {
		if err := l.reconnect(ctx); err != nil {
			return err
		}
	}

	throttle, front, rear, ok, err := l.readDrive()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	cmd := actuation.ServoCommand{Throttle: throttle, FrontSteer: front, RearSteer: rear}.Clamp()
	debug.Log("drive: throttle=%.2f front=%.2f rear=%.2f", cmd.Throttle, cmd.FrontSteer, cmd.RearSteer)
	if _, err := l.bus.SetThrottle(cmd.Throttle); err != nil {
		return l.hardwareFailure("throttle", err)
	}
	if _, _, err := l.bus.SetSteering(cmd.FrontSteer, cmd.RearSteer); err != nil {
		return l.hardwareFailure("steering", err)
	}

	pan, tilt := 0.0, 0.0
	if l.Mode() == ModeTracking {
		pan, tilt = l.tracker.Step(l.shared.Snapshot())
	}
	if err := l.writeMount(pan, tilt); err != nil {
		return l.hardwareFailure("pan/tilt", err)
	}

	l.publishState(ctx, "Vehicle State Change")

	if hb := l.config.HeartbeatTicks; hb > 0 && ticks%hb == 0 {
		st := l.Stats()
		l.logger.Debug("control heartbeat",
			"ticks", st.Ticks, "input_errors", st.InputErrors, "emitted", st.Emitted,
			"mode", l.Mode().String())
	}
	return nil
}

// writeMount sends pan/tilt unless the same command is already on the bus.
func (l *Loop) writeMount(pan, tilt float64) error {
	m := l.mount
	if m.valid && m.pan == pan && m.tilt == tilt {
		if st := l.bus.State(); st.Pan == m.panAngle && st.Tilt == m.tiltAngle {
			return nil
		}
	}

	panAngle, tiltAngle, err := l.bus.SetPanTilt(pan, tilt)
	if err != nil {
		l.mount = mountWrite{}
		return err
	}
	l.mount = mountWrite{valid: true, pan: pan, tilt: tilt, panAngle: panAngle, tiltAngle: tiltAngle}
	return nil
}

// reconnect parks the vehicle and blocks until the gamepad is back.
func (l *Loop) reconnect(ctx context.Context) error {
	l.logger.Warn("gamepad not connected, parking vehicle")
	if err := l.bus.ReturnNeutral(); err != nil {
		return l.hardwareFailure("neutral", err)
	}
	l.publishState(ctx, "Gamepad Disconnected")

	if err := l.pad.WaitForConnection(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.stats.Reconnects++
	l.mu.Unlock()
	l.toggleHeld = false
	l.logger.Info("gamepad reconnected")
	return nil
}

// readDrive reads the drive inputs and the mode toggle. ok is false when
// the tick should be skipped.
func (l *Loop) readDrive() (throttle, front, rear float64, ok bool, err error) {
	throttle, err = l.pad.ReadThrottle()
	if err == nil {
		front, err = l.pad.GetAxis(l.config.FrontAxis)
	}
	if err == nil {
		rear, err = l.pad.GetAxis(l.config.RearAxis)
	}
	if err == nil && l.config.ToggleButton != "" {
		var pressed bool
		pressed, err = l.pad.GetButton(l.config.ToggleButton)
		if err == nil {
			l.handleToggle(pressed)
		}
	}

	switch {
	case err == nil:
		return throttle, front, rear, true, nil
	case errors.Is(err, input.ErrInvalidName):
		return 0, 0, 0, false, err
	case errors.Is(err, input.ErrDisconnected), errors.Is(err, input.ErrNoDevice):
		// Park now; the next tick's connection check blocks until it's back.
		l.countInputError()
		l.logger.Warn("gamepad lost during read", "error", err)
		if nerr := l.bus.ReturnNeutral(); nerr != nil {
			return 0, 0, 0, false, l.hardwareFailure("neutral", nerr)
		}
		return 0, 0, 0, false, nil
	default:
		l.countInputError()
		l.logger.Warn("input read failed, skipping tick", "error", err)
		return 0, 0, 0, false, nil
	}
}

func (l *Loop) handleToggle(pressed bool) {
	rising := pressed && !l.toggleHeld
	l.toggleHeld = pressed
	if !rising {
		return
	}

	next := ModeTracking
	if l.Mode() == ModeTracking {
		next = ModeManual
	}
	if next == ModeTracking {
		if !l.canTrack() {
			l.logger.Warn("tracking requested but no tracker attached")
			return
		}
		l.tracker.Reset()
	}
	l.SetMode(next)
}

func (l *Loop) countInputError() {
	l.mu.Lock()
	l.stats.InputErrors++
	l.mu.Unlock()
}

func (l *Loop) hardwareFailure(what string, err error) error {
	l.logger.Error("hardware write failed, stopping", "write", what, "error", err)
	if nerr := l.bus.ReturnNeutral(); nerr != nil {
		err = errors.Join(err, nerr)
	}
	return fmt.Errorf("control: %s: %w", what, err)
}

// publishState records the bus state and emits it when it changed.
func (l *Loop) publishState(ctx context.Context, subject string) {
	current := l.bus.State()

	l.mu.Lock()
	changed := !l.emitted || current != l.state
	l.state = current
	l.mu.Unlock()

	if !changed || l.sink == nil {
		return
	}
	l.emitted = true

	err := l.sink.Emit(ctx, telemetry.Event{
		Subject: subject,
		Mode:    l.Mode().String(),
		State:   current,
	})
	if err != nil {
		l.logger.Warn("state log failed", "error", err)
		return
	}
	l.mu.Lock()
	l.stats.Emitted++
	l.mu.Unlock()
}
