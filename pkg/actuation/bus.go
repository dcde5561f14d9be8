package actuation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-rover/internal/log"
)

// Bus translates normalized commands into hardware values and writes them
// through a Driver. Every command is clamped before translation and every
// hardware value is limited to its channel's bounds.
//
// A write failure is treated as safety-critical: the Bus attempts
// ReturnNeutral before returning the error.
type Bus struct {
	driver Driver
	config Config
	logger *slog.Logger

	mu     sync.RWMutex
	state  VehicleState
	closed bool

	closeOnce sync.Once
	closeErr  error

	writes     uint64
	errorCount uint64
}

// New creates a bus and immediately returns every channel to neutral.
func New(drv Driver, cfg Config) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bus{
		driver: drv,
		config: cfg,
		logger: log.With("component", "actuation"),
	}

	if err := b.ReturnNeutral(); err != nil {
		return nil, fmt.Errorf("actuation: startup neutral: %w", err)
	}
	return b, nil
}

// SetLogger replaces the bus logger.
func (b *Bus) SetLogger(l *slog.Logger) {
	b.mu.Lock()
	b.logger = l
	b.mu.Unlock()
}

// Config returns the channel table.
func (b *Bus) Config() Config {
	return b.config
}

// SetThrottle clamps v and writes the ESC pulse. Returns the pulse in µs.
func (b *Bus) SetThrottle(v float64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	pulse := ThrottlePulse(b.config.ESC, v)
	if err := b.writeLocked(ChannelThrottle, pulse); err != nil {
		return 0, err
	}
	return pulse, nil
}

// SetSteering clamps both values and writes the steering servo angles.
func (b *Bus) SetSteering(front, rear float64) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, 0, ErrClosed
	}

	frontAngle := ServoAngle(b.config.Servo, front)
	rearAngle := ServoAngle(b.config.Servo, rear)

	if err := b.writeLocked(ChannelFrontSteer, frontAngle); err != nil {
		return 0, 0, err
	}
	if err := b.writeLocked(ChannelRearSteer, rearAngle); err != nil {
		return 0, 0, err
	}
	return frontAngle, rearAngle, nil
}

// SetPanTilt clamps both values and writes the camera mount angles.
// Tilt is inverted: +1 points the camera up.
func (b *Bus) SetPanTilt(pan, tilt float64) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, 0, ErrClosed
	}

	panAngle := ServoAngle(b.config.Servo, pan)
	tiltAngle := ServoAngle(b.config.Servo, -clampUnit(tilt))

	if err := b.writeLocked(ChannelPan, panAngle); err != nil {
		return 0, 0, err
	}
	if err := b.writeLocked(ChannelTilt, tiltAngle); err != nil {
		return 0, 0, err
	}
	return panAngle, tiltAngle, nil
}

// Apply clamps the command and issues throttle, steering and pan/tilt.
func (b *Bus) Apply(cmd ServoCommand) error {
	cmd = cmd.Clamp()
	if _, err := b.SetThrottle(cmd.Throttle); err != nil {
		return err
	}
	if _, _, err := b.SetSteering(cmd.FrontSteer, cmd.RearSteer); err != nil {
		return err
	}
	if _, _, err := b.SetPanTilt(cmd.Pan, cmd.Tilt); err != nil {
		return err
	}
	return nil
}

// ReturnNeutral sets every channel to its safe value. Every channel is
// attempted even if an earlier one fails; the failures are joined.
func (b *Bus) ReturnNeutral() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return b.neutralLocked()
}

// State returns the values last written.
func (b *Bus) State() VehicleState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns the number of successful writes and failed writes.
func (b *Bus) Stats() (writes, failures uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes, b.errorCount
}

// Close returns every channel to neutral and releases the driver.
// It is safe to call more than once; later calls return the first result.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		neutralErr := b.neutralLocked()
		b.closed = true
		closeErr := b.driver.Close()

		b.closeErr = errors.Join(neutralErr, closeErr)
		b.logger.Info("actuation bus closed", "writes", b.writes, "errors", b.errorCount)
	})
	return b.closeErr
}

func (b *Bus) neutralLocked() error {
	var errs []error
	for _, ch := range Channels {
		if err := b.rawWriteLocked(ch, b.neutralFor(ch)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		b.logger.Error("return to neutral incomplete", "error", errors.Join(errs...))
	}
	return errors.Join(errs...)
}

func (b *Bus) neutralFor(ch Channel) int {
	if ch == ChannelThrottle {
		return b.config.ESC.Neutral
	}
	return b.config.Servo.Neutral
}

// writeLocked writes one channel; on failure it forces neutral before
// surfacing the error.
func (b *Bus) writeLocked(ch Channel, value int) error {
	err := b.rawWriteLocked(ch, value)
	if err == nil {
		return nil
	}

	b.logger.Error("hardware write failed, returning to neutral",
		"channel", ch.String(), "value", value, "error", err)
	if nerr := b.neutralLocked(); nerr != nil {
		return errors.Join(err, nerr)
	}
	return err
}

func (b *Bus) rawWriteLocked(ch Channel, value int) error {
	var err error
	if ch == ChannelThrottle {
		value = b.config.ESC.Limit(value)
		err = b.driver.SetPulse(ch, value)
	} else {
		value = b.config.Servo.Limit(value)
		err = b.driver.SetAngle(ch, value)
	}
	if err != nil {
		b.errorCount++
		return &WriteError{Channel: ch, Value: value, Err: err}
	}

	b.writes++
	switch ch {
	case ChannelThrottle:
		b.state.Throttle = value
	case ChannelFrontSteer:
		b.state.FrontSteer = value
	case ChannelRearSteer:
		b.state.RearSteer = value
	case ChannelPan:
		b.state.Pan = value
	case ChannelTilt:
		b.state.Tilt = value
	}
	return nil
}
