package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
)

// Gamepad reads named axes and buttons from the current device and tracks
// whether one is connected.
type Gamepad struct {
	backend Backend
	config  Config
	logger  *slog.Logger

	mu        sync.Mutex
	device    Device
	connected bool
}

// NewGamepad creates a gamepad with no device open. Call WaitForConnection
// to open one.
func NewGamepad(b Backend, cfg Config) *Gamepad {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.TriggerConflict == "" {
		cfg.TriggerConflict = ConflictNeutral
	}
	return &Gamepad{
		backend: b,
		config:  cfg,
		logger:  log.With("component", "input"),
	}
}

// SetLogger replaces the gamepad logger.
func (g *Gamepad) SetLogger(l *slog.Logger) {
	g.mu.Lock()
	g.logger = l
	g.mu.Unlock()
}

// Config returns the gamepad settings.
func (g *Gamepad) Config() Config {
	return g.config
}

// Name returns the open device's name, or "" when none is open.
func (g *Gamepad) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.device == nil {
		return ""
	}
	return g.device.Name()
}

// Connected reports the status from the last check.
func (g *Gamepad) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// UpdateConnectionStatus enumerates devices once without blocking. The
// gamepad counts as connected only when a device is attached and open.
func (g *Gamepad) UpdateConnectionStatus() bool {
	n, err := g.backend.Count()

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil || n == 0 {
		if err != nil {
			g.logger.Warn("gamepad enumeration failed", "error", err)
		}
		if g.connected {
			g.logger.Warn("gamepad disconnected")
		}
		g.dropLocked()
		return false
	}
	g.connected = g.device != nil
	return g.connected
}

// WaitForConnection blocks until a device is attached and opened, polling
// every PollInterval. It returns ctx.Err() when ctx is cancelled.
func (g *Gamepad) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(g.config.PollInterval)
	defer ticker.Stop()

	waiting := false
	for {
		ok, err := g.tryOpen()
		if err != nil {
			return err
		}
		if ok {
			if waiting {
				g.logger.Info("gamepad connected", "name", g.Name())
			}
			return nil
		}
		if !waiting {
			g.logger.Info("no gamepad connected, waiting", "poll", g.config.PollInterval)
			waiting = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Gamepad) tryOpen() (bool, error) {
	n, err := g.backend.Count()
	if err != nil {
		g.logger.Debug("gamepad enumeration failed", "error", err)
		return false, nil
	}
	if n <= g.config.DeviceIndex {
		return false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.device != nil {
		g.connected = true
		return true, nil
	}

	dev, err := g.backend.Open(g.config.DeviceIndex)
	if err != nil {
		return false, fmt.Errorf("input: open device %d: %w", g.config.DeviceIndex, err)
	}
	g.device = dev
	g.connected = true
	return true, nil
}

// ReadThrottle combines the triggers into one value in [-1, 1]. RT drives
// forward, LT drives reverse. Both triggers rest at -1 and count as pressed
// once raw+1 exceeds the deadzone.
func (g *Gamepad) ReadThrottle() (float64, error) {
	state, err := g.read()
	if err != nil {
		return 0, err
	}

	axes := g.config.axes()
	rt, err := axisValue(state, axes, AxisRT)
	if err != nil {
		return 0, err
	}
	lt, err := axisValue(state, axes, AxisLT)
	if err != nil {
		return 0, err
	}

	forward := rt+1 > g.config.Deadzone
	reverse := lt+1 > g.config.Deadzone

	switch {
	case forward && reverse:
		if g.config.TriggerConflict == ConflictForward {
			return (rt + 1) / 2, nil
		}
		return 0, nil
	case forward:
		return (rt + 1) / 2, nil
	case reverse:
		return -(lt + 1) / 2, nil
	default:
		return 0, nil
	}
}

// GetAxis returns the named axis in [-1, 1].
func (g *Gamepad) GetAxis(name string) (float64, error) {
	axes := g.config.axes()
	if _, ok := axes[name]; !ok {
		return 0, fmt.Errorf("%w: axis %q", ErrInvalidName, name)
	}
	state, err := g.read()
	if err != nil {
		return 0, err
	}
	return axisValue(state, axes, name)
}

// GetButton reports whether the named button is held.
func (g *Gamepad) GetButton(name string) (bool, error) {
	idx, ok := g.config.buttons()[name]
	if !ok {
		return false, fmt.Errorf("%w: button %q", ErrInvalidName, name)
	}
	state, err := g.read()
	if err != nil {
		return false, err
	}
	return state.Button(idx), nil
}

// Close releases the device, if any.
func (g *Gamepad) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.device == nil {
		return nil
	}
	err := g.device.Close()
	g.device = nil
	g.connected = false
	return err
}

func (g *Gamepad) read() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.device == nil {
		return State{}, ErrNoDevice
	}
	state, err := g.device.Read()
	if err != nil {
		g.logger.Warn("gamepad read failed", "error", err)
		g.dropLocked()
		return State{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return state, nil
}

func (g *Gamepad) dropLocked() {
	if g.device != nil {
		g.device.Close()
		g.device = nil
	}
	g.connected = false
}

func axisValue(s State, axes map[string]int, name string) (float64, error) {
	idx, ok := axes[name]
	if !ok {
		return 0, fmt.Errorf("%w: axis %q", ErrInvalidName, name)
	}
	if idx < 0 || idx >= len(s.Axes) {
		return 0, fmt.Errorf("%w: axis %q (index %d) not reported by device", ErrInvalidName, name, idx)
	}
	return s.Axes[idx], nil
}
