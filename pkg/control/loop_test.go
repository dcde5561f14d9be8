package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/input"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/telemetry"
	"github.com/teslashibe/go-rover/pkg/tracking"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

type rig struct {
	backend *input.MockBackend
	pad     *input.Gamepad
	driver  *actuation.MockDriver
	bus     *actuation.Bus
	shared  *perception.SharedState
	tracker *tracking.Controller
	sink    *recordingSink
}

func newRig(t *testing.T) *rig {
	t.Helper()

	backend := input.NewMockBackend(1)
	padCfg := input.DefaultConfig()
	padCfg.PollInterval = 2 * time.Millisecond
	pad := input.NewGamepad(backend, padCfg)
	pad.SetLogger(log.Discard())

	drv := actuation.NewMockDriver()
	bus, err := actuation.New(drv, actuation.DefaultConfig())
	if err != nil {
		t.Fatalf("actuation.New: %v", err)
	}
	bus.SetLogger(log.Discard())

	trackCfg := tracking.DefaultConfig()
	trackCfg.StaleAfter = 0
	tracker := tracking.NewController(trackCfg)
	tracker.SetLogger(log.Discard())

	return &rig{
		backend: backend,
		pad:     pad,
		driver:  drv,
		bus:     bus,
		shared:  perception.NewSharedState(),
		tracker: tracker,
		sink:    &recordingSink{},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Period = 2 * time.Millisecond
	cfg.TrackingPeriod = 2 * time.Millisecond
	cfg.HeartbeatTicks = 0
	return cfg
}

func (r *rig) loop(cfg Config, tracked bool) *Loop {
	opts := []Option{WithStateLogger(r.sink), WithLogger(log.Discard())}
	if tracked {
		opts = append(opts, WithTracking(r.shared, r.tracker))
	}
	return New(r.pad, r.bus, cfg, opts...)
}

func start(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func waitTicks(t *testing.T, l *Loop, n uint64) {
	t.Helper()
	base := l.Stats().Ticks
	waitFor(t, 2*time.Second, func() bool { return l.Stats().Ticks >= base+n })
}

func stop(t *testing.T, cancel context.CancelFunc, errc <-chan error) error {
	t.Helper()
	cancel()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
		return nil
	}
}

func assertNeutral(t *testing.T, drv *actuation.MockDriver) {
	t.Helper()
	if v, _ := drv.Last(actuation.ChannelThrottle); v != actuation.ESCNeutralPulse {
		t.Errorf("throttle: got %d, want %d", v, actuation.ESCNeutralPulse)
	}
	for _, ch := range []actuation.Channel{actuation.ChannelFrontSteer, actuation.ChannelRearSteer, actuation.ChannelPan, actuation.ChannelTilt} {
		if v, _ := drv.Last(ch); v != actuation.ServoNeutralAngle {
			t.Errorf("%s: got %d, want %d", ch, v, actuation.ServoNeutralAngle)
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *recordingSink) Emit(_ context.Context, e telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) Events() []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestLoop_ManualDrive(t *testing.T) {
	r := newRig(t)
	dev := r.backend.Device()
	dev.SetNamed(input.AxisRT, 1)
	dev.SetNamed(input.AxisLeftX, -1)
	dev.SetNamed(input.AxisRightX, 0.5)

	l := r.loop(testConfig(), false)
	if l.Mode() != ModeManual {
		t.Fatalf("mode without tracker: got %s", l.Mode())
	}
	cancel, errc := start(t, l)

	want := actuation.VehicleState{Throttle: 2000, FrontSteer: 0, RearSteer: 135, Pan: 90, Tilt: 90}
	waitFor(t, 2*time.Second, func() bool { return l.State() == want })

	if err := stop(t, cancel, errc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertNeutral(t, r.driver)
}

func TestLoop_ReverseTrigger(t *testing.T) {
	r := newRig(t)
	r.backend.Device().SetNamed(input.AxisLT, 1)

	l := r.loop(testConfig(), false)
	cancel, errc := start(t, l)

	waitFor(t, 2*time.Second, func() bool { return l.State().Throttle == actuation.ESCFullReversePulse })
	stop(t, cancel, errc)
}

func TestLoop_TrackingDeadBandHolds(t *testing.T) {
	r := newRig(t)
	// Center offset (+30, -20) is inside the 50px dead-band.
	r.shared.Publish(camera.Frame{Width: 320, Height: 240}, &detection.Detection{
		Label: detection.LabelPerson, Confidence: 0.9, X: 170, Y: 80, W: 40, H: 40,
	})

	l := r.loop(testConfig(), true)
	if l.Mode() != ModeTracking {
		t.Fatalf("mode: got %s, want TRACKING", l.Mode())
	}
	cancel, errc := start(t, l)
	waitTicks(t, l, 10)

	if s := l.State(); s.Pan != 90 || s.Tilt != 90 {
		t.Errorf("pan/tilt: got %d/%d, want 90/90", s.Pan, s.Tilt)
	}
	stop(t, cancel, errc)

	if a := r.tracker.Angles(); a != tracking.Centered() {
		t.Errorf("angles moved inside dead-band: %+v", a)
	}
	// One publish is one update, however many ticks ran.
	if updates, _ := r.tracker.Stats(); updates != 1 {
		t.Errorf("tracker updates: got %d, want 1", updates)
	}
}

func TestLoop_TrackingFollowsTarget(t *testing.T) {
	r := newRig(t)
	frame := camera.Frame{Width: 320, Height: 240}
	// Target far right and above center: both servos climb one step.
	target := &detection.Detection{
		Label: detection.LabelPerson, Confidence: 0.9, X: 280, Y: 0, W: 20, H: 20,
	}
	r.shared.Publish(frame, target)

	l := r.loop(testConfig(), true)
	cancel, errc := start(t, l)

	mountAt := func(pan, tilt int) func() bool {
		return func() bool {
			s := l.State()
			return s.Pan == pan && s.Tilt == tilt
		}
	}
	waitFor(t, 2*time.Second, mountAt(92, 92))
	waitTicks(t, l, 20)
	if s := l.State(); s.Pan != 92 || s.Tilt != 92 {
		t.Fatalf("one publish moved the mount to %d/%d, want 92/92", s.Pan, s.Tilt)
	}

	r.shared.Publish(frame, target)
	waitFor(t, 2*time.Second, mountAt(94, 94))
	waitTicks(t, l, 20)
	if s := l.State(); s.Pan != 94 || s.Tilt != 94 {
		t.Errorf("second publish moved the mount to %d/%d, want 94/94", s.Pan, s.Tilt)
	}
	stop(t, cancel, errc)

	if updates, _ := r.tracker.Stats(); updates != 2 {
		t.Errorf("tracker updates: got %d, want 2", updates)
	}
	// Exit forces the mount back to neutral regardless of tracker angles.
	assertNeutral(t, r.driver)
}

func TestLoop_UnchangedMountNotRewritten(t *testing.T) {
	r := newRig(t)
	l := r.loop(testConfig(), true)
	cancel, errc := start(t, l)

	countMount := func() (n int) {
		for _, w := range r.driver.Writes() {
			if w.Channel == actuation.ChannelPan || w.Channel == actuation.ChannelTilt {
				n++
			}
		}
		return n
	}

	waitTicks(t, l, 5)
	before := countMount()
	waitTicks(t, l, 20)
	if after := countMount(); after != before {
		t.Errorf("idle mount rewritten %d times", after-before)
	}

	// A new detection still reaches the servos.
	r.shared.Publish(camera.Frame{Width: 320, Height: 240}, &detection.Detection{
		Label: detection.LabelPerson, Confidence: 0.9, X: 280, Y: 100, W: 20, H: 20,
	})
	waitFor(t, 2*time.Second, func() bool { return l.State().Pan == 92 })
	stop(t, cancel, errc)
}

func TestLoop_ManualHoldsPanTiltNeutral(t *testing.T) {
	r := newRig(t)
	r.shared.Publish(camera.Frame{Width: 320, Height: 240}, &detection.Detection{X: 300, Y: 0, W: 10, H: 10})

	cfg := testConfig()
	cfg.StartTracking = false
	l := r.loop(cfg, true)
	cancel, errc := start(t, l)
	waitTicks(t, l, 10)

	if s := l.State(); s.Pan != 90 || s.Tilt != 90 {
		t.Errorf("manual pan/tilt: got %d/%d", s.Pan, s.Tilt)
	}
	stop(t, cancel, errc)

	if updates, holds := r.tracker.Stats(); updates+holds != 0 {
		t.Errorf("tracker stepped %d times in manual mode", updates+holds)
	}
}

func TestLoop_ToggleButton(t *testing.T) {
	r := newRig(t)
	dev := r.backend.Device()
	y := input.XboxButtons[input.ButtonY]

	l := r.loop(testConfig(), true)
	cancel, errc := start(t, l)
	waitTicks(t, l, 2)

	dev.SetButton(y, true)
	waitFor(t, time.Second, func() bool { return l.Mode() == ModeManual })

	// Holding the button must not toggle again.
	waitTicks(t, l, 5)
	if l.Mode() != ModeManual {
		t.Fatal("held button toggled more than once")
	}

	dev.SetButton(y, false)
	waitTicks(t, l, 2)
	dev.SetButton(y, true)
	waitFor(t, time.Second, func() bool { return l.Mode() == ModeTracking })

	stop(t, cancel, errc)
}

func TestLoop_SetModeWithoutTracker(t *testing.T) {
	r := newRig(t)
	l := r.loop(testConfig(), false)

	if err := l.SetMode(ModeTracking); !errors.Is(err, ErrNoTracker) {
		t.Errorf("SetMode(TRACKING): got %v, want ErrNoTracker", err)
	}
	if err := l.SetMode(ModeManual); err != nil {
		t.Errorf("SetMode(MANUAL): %v", err)
	}
	if err := l.SetMode(Mode(7)); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestLoop_HardwareFailureStops(t *testing.T) {
	r := newRig(t)
	r.backend.Device().SetNamed(input.AxisRT, 1)
	r.backend.Device().SetNamed(input.AxisLeftX, 1)

	l := r.loop(testConfig(), false)
	_, errc := start(t, l)
	waitFor(t, 2*time.Second, func() bool { return l.State().FrontSteer == 180 })

	boom := errors.New("esc not responding")
	r.driver.FailOn(actuation.ChannelThrottle, boom)

	select {
	case err := <-errc:
		if !errors.Is(err, actuation.ErrHardwareWrite) {
			t.Fatalf("Run: got %v, want ErrHardwareWrite", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("driver error lost: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on hardware failure")
	}

	for _, ch := range []actuation.Channel{actuation.ChannelFrontSteer, actuation.ChannelRearSteer, actuation.ChannelPan, actuation.ChannelTilt} {
		if v, _ := r.driver.Last(ch); v != actuation.ServoNeutralAngle {
			t.Errorf("%s after failure: got %d, want neutral", ch, v)
		}
	}
}

func TestLoop_DisconnectParksAndWaits(t *testing.T) {
	r := newRig(t)
	r.backend.Device().SetNamed(input.AxisRT, 1)

	l := r.loop(testConfig(), false)
	cancel, errc := start(t, l)
	waitFor(t, 2*time.Second, func() bool { return l.State().Throttle == 2000 })

	reconnects := l.Stats().Reconnects
	r.backend.SetCount(0)
	waitFor(t, 2*time.Second, func() bool { return l.State().Throttle == actuation.ESCNeutralPulse })

	// Stays parked while no device is attached.
	time.Sleep(20 * time.Millisecond)
	if v, _ := r.driver.Last(actuation.ChannelThrottle); v != actuation.ESCNeutralPulse {
		t.Fatalf("throttle while disconnected: got %d", v)
	}

	r.backend.SetCount(1)
	waitFor(t, 2*time.Second, func() bool {
		return l.Stats().Reconnects == reconnects+1 && l.State().Throttle == 2000
	})

	if err := stop(t, cancel, errc); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLoop_CancelWhileWaiting(t *testing.T) {
	r := newRig(t)
	r.backend.SetCount(0)

	l := r.loop(testConfig(), false)
	cancel, errc := start(t, l)
	time.Sleep(10 * time.Millisecond)

	if err := stop(t, cancel, errc); err != nil {
		t.Fatalf("Run: got %v, want nil on cancel", err)
	}
	assertNeutral(t, r.driver)
}

func TestLoop_InvalidAxisIsFatal(t *testing.T) {
	r := newRig(t)
	cfg := testConfig()
	cfg.RearAxis = "RUDDER"

	l := r.loop(cfg, false)
	err := l.Run(context.Background())
	if !errors.Is(err, input.ErrInvalidName) {
		t.Fatalf("Run: got %v, want ErrInvalidName", err)
	}
	assertNeutral(t, r.driver)
}

func TestLoop_StateLoggerOnlyOnChange(t *testing.T) {
	r := newRig(t)
	l := r.loop(testConfig(), false)
	cancel, errc := start(t, l)

	waitTicks(t, l, 10)
	if n := len(r.sink.Events()); n != 1 {
		t.Fatalf("events at rest: got %d, want 1 (initial)", n)
	}

	r.backend.Device().SetNamed(input.AxisRT, 0)
	waitFor(t, 2*time.Second, func() bool { return len(r.sink.Events()) == 2 })
	waitTicks(t, l, 5)

	events := r.sink.Events()
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}
	if events[1].State.Throttle != 1788 {
		t.Errorf("logged throttle: got %d, want 1788", events[1].State.Throttle)
	}
	if events[1].Mode != "MANUAL" {
		t.Errorf("logged mode: got %q", events[1].Mode)
	}
	stop(t, cancel, errc)
}

type flakyPad struct {
	Gamepad
	mu    sync.Mutex
	fails int
}

func (p *flakyPad) ReadThrottle() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return 0, errors.New("short read")
	}
	return p.Gamepad.ReadThrottle()
}

func TestLoop_InputErrorSkipsTick(t *testing.T) {
	r := newRig(t)
	r.backend.Device().SetNamed(input.AxisRT, 1)
	pad := &flakyPad{Gamepad: r.pad, fails: 3}

	l := New(pad, r.bus, testConfig(), WithLogger(log.Discard()))
	cancel, errc := start(t, l)

	waitFor(t, 2*time.Second, func() bool { return l.State().Throttle == 2000 })
	if n := l.Stats().InputErrors; n != 3 {
		t.Errorf("input errors: got %d, want 3", n)
	}
	if err := stop(t, cancel, errc); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLoop_Period(t *testing.T) {
	r := newRig(t)
	if p := r.loop(DefaultConfig(), false).Period(); p != 50*time.Millisecond {
		t.Errorf("manual period: got %v", p)
	}
	if p := r.loop(DefaultConfig(), true).Period(); p != 20*time.Millisecond {
		t.Errorf("tracking period: got %v", p)
	}
}

func TestMode_String(t *testing.T) {
	if ModeManual.String() != "MANUAL" || ModeTracking.String() != "TRACKING" {
		t.Error("unexpected mode names")
	}
	if Mode(9).String() != "Mode(9)" {
		t.Errorf("unknown mode: %s", Mode(9))
	}
}
