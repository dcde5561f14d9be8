// Package rover wires the camera, perception worker, tracker, gamepad,
// actuation bus, telemetry and dashboard into one application.
package rover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/debug"
	"github.com/teslashibe/go-rover/pkg/input"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/telemetry"
	"github.com/teslashibe/go-rover/pkg/tracking"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
	"github.com/teslashibe/go-rover/pkg/web"
)

// Options are the command-line switches layered over the configuration.
type Options struct {
	Tracking      bool
	Debug         bool
	DebugTracking bool
}

// Hardware overrides the real devices. Nil fields are opened from the
// configuration.
type Hardware struct {
	Driver   actuation.Driver
	Gamepad  input.Backend
	Camera   camera.Source
	Detector detection.Detector
}

// App is the rover application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config  config.Config
	options Options
	hw      Hardware
	logger  *slog.Logger

	bus      *actuation.Bus
	pad      *input.Gamepad
	source   camera.Source
	detector detection.Detector
	shared   *perception.SharedState
	worker   *perception.Worker
	tracker  *tracking.Controller
	recorder *telemetry.Recorder
	loop     *control.Loop
	web      *web.Server

	shutdownOnce sync.Once
}

// New validates the configuration and creates an application.
func New(cfg config.Config, opts Options, hw Hardware) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = opts.Debug
	debug.Tracking = opts.DebugTracking

	return &App{
		config:  cfg,
		options: opts,
		hw:      hw,
		logger:  log.With("component", "rover"),
	}, nil
}

// Init opens every device and builds the components.
// Call this after New() and before Run(). A missing device is an error.
func (a *App) Init() error {
	if err := a.initActuation(); err != nil {
		return fmt.Errorf("actuation: %w", err)
	}

	backend := a.hw.Gamepad
	if backend == nil {
		backend = input.NewJoystickBackend()
	}
	a.pad = input.NewGamepad(backend, a.config.Input)

	if a.options.Tracking {
		if err := a.initPerception(); err != nil {
			return fmt.Errorf("perception: %w", err)
		}
	}

	rec, err := telemetry.FromConfig(a.config.Telemetry, nil)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.recorder = rec

	opts := []control.Option{control.WithStateLogger(a.recorder)}
	if a.tracker != nil {
		opts = append(opts, control.WithTracking(a.shared, a.tracker))
	}
	a.loop = control.New(a.pad, a.bus, a.config.Control, opts...)

	if a.config.Web.Port != "" {
		src := web.Sources{
			Vehicle: a.loop,
			Gamepad: a.pad,
			Session: a.recorder.Session(),
		}
		if a.worker != nil {
			src.Perception = a.shared
			src.Worker = a.worker
		}
		a.web = web.NewServer(a.config.Web, src)
	}

	a.logger.Info("rover initialized",
		"tracking", a.tracker != nil, "dashboard", a.config.Web.Port, "session", a.recorder.Session())
	return nil
}

func (a *App) initActuation() error {
	drv := a.hw.Driver
	if drv == nil {
		pd, err := actuation.NewPeriphDriver(a.config.Actuation)
		if err != nil {
			return err
		}
		drv = pd
	}

	bus, err := actuation.New(drv, a.config.Actuation)
	if err != nil {
		drv.Close()
		return err
	}
	a.bus = bus
	return nil
}

func (a *App) initPerception() error {
	a.source = a.hw.Camera
	if a.source == nil {
		var cam *camera.USBCamera
		var err error
		if a.config.Camera.Device != "" {
			cam, err = camera.OpenPath(a.config.Camera.Device, a.config.Camera)
		} else {
			cam, err = camera.Open(a.config.CameraIndex, a.config.Camera)
		}
		if err != nil {
			return err
		}
		a.source = cam
	}

	a.detector = a.hw.Detector
	if a.detector == nil {
		yolo, err := detection.NewYOLO(a.config.Detector)
		if err != nil {
			return err
		}
		a.detector = yolo
	}

	a.shared = perception.NewSharedState()
	a.worker = perception.NewWorker(a.source, a.detector, a.shared, a.config.Perception)
	a.tracker = tracking.NewController(a.config.Tracking)
	return nil
}

// Loop returns the control loop, once Init has run.
func (a *App) Loop() *control.Loop {
	return a.loop
}

// Run waits for the gamepad, then runs the worker, the dashboard and the
// control loop until ctx is cancelled or the loop fails.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("rover: Run called before Init")
	}

	if err := a.pad.WaitForConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	a.logger.Info("gamepad ready", "name", a.pad.Name())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return err
		}
		defer a.worker.Stop()
	}

	var wg sync.WaitGroup
	if a.web != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.web.Run(ctx); err != nil {
				a.logger.Warn("web dashboard stopped", "error", err)
			}
		}()
	}

	err := a.loop.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// Shutdown parks the vehicle and releases every device. Safe to call more
// than once.
func (a *App) Shutdown() error {
	var errs []error
	a.shutdownOnce.Do(func() {
		if a.worker != nil {
			a.worker.Stop()
		}
		if a.bus != nil {
			errs = append(errs, a.bus.Close())
		}
		if a.source != nil {
			errs = append(errs, a.source.Release())
		}
		if a.detector != nil {
			errs = append(errs, a.detector.Close())
		}
		if a.pad != nil {
			errs = append(errs, a.pad.Close())
		}
		if a.recorder != nil {
			errs = append(errs, a.recorder.Close())
		}
		a.logger.Info("rover shut down")
	})
	return errors.Join(errs...)
}
