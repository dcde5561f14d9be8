package rover

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/input"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Web.Port = ""
	cfg.Telemetry.CSVPath = filepath.Join(t.TempDir(), "state.csv")
	cfg.Telemetry.LogEvents = false
	cfg.Control.Period = 2 * time.Millisecond
	cfg.Control.TrackingPeriod = 2 * time.Millisecond
	cfg.Input.PollInterval = 2 * time.Millisecond
	cfg.Perception.ErrorBackoff = time.Millisecond
	cfg.Tracking.StaleAfter = 0
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestApp_TrackingEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	drv := actuation.NewMockDriver()
	pad := input.NewMockBackend(1)
	pad.Device().SetNamed(input.AxisRT, 1)
	src := camera.NewMockSource(320, 240)
	det := &detection.Mock{DetectFunc: func(camera.Frame) ([]detection.Detection, error) {
		// Person to the right of center, beyond the dead-band.
		return []detection.Detection{{Label: detection.LabelPerson, Confidence: 0.9, X: 260, Y: 100, W: 40, H: 40}}, nil
	}}

	app, err := New(cfg, Options{Tracking: true}, Hardware{Driver: drv, Gamepad: pad, Camera: src, Detector: det})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	waitFor(t, func() bool {
		s := app.Loop().State()
		return s.Throttle == actuation.ESCFullForwardPulse && s.Pan > 100
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}

	if err := app.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	if v, _ := drv.Last(actuation.ChannelThrottle); v != actuation.ESCNeutralPulse {
		t.Errorf("throttle after shutdown: %d", v)
	}
	if v, _ := drv.Last(actuation.ChannelPan); v != actuation.ServoNeutralAngle {
		t.Errorf("pan after shutdown: %d", v)
	}
	if drv.Closes() != 1 {
		t.Errorf("driver closes: %d", drv.Closes())
	}
	if src.Released() != 1 {
		t.Errorf("camera releases: %d", src.Released())
	}

	data, err := os.ReadFile(cfg.Telemetry.CSVPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.Contains(string(data), ",2000,") {
		t.Errorf("csv missing full-throttle row:\n%s", data)
	}
}

func TestApp_ManualOnly(t *testing.T) {
	cfg := testConfig(t)
	drv := actuation.NewMockDriver()
	pad := input.NewMockBackend(1)

	app, err := New(cfg, Options{}, Hardware{Driver: drv, Gamepad: pad})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer app.Shutdown()

	if err := app.Loop().SetMode(control.ModeTracking); err == nil {
		t.Error("tracking should be unavailable without -tracking")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if app.Loop().Stats().Ticks == 0 {
		t.Error("loop never ticked")
	}
}

func TestApp_CancelBeforeGamepad(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg, Options{}, Hardware{Driver: actuation.NewMockDriver(), Gamepad: input.NewMockBackend(0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: got %v, want nil", err)
	}
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Control.Period = 0
	if _, err := New(cfg, Options{}, Hardware{}); err == nil {
		t.Error("expected validation error")
	}
}

func TestApp_RunBeforeInit(t *testing.T) {
	app, err := New(testConfig(t), Options{}, Hardware{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Run(context.Background()); err == nil {
		t.Error("expected error")
	}
}
