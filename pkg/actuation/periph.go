package actuation

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// pcaResolution is the PCA9685 counter range per PWM period.
const pcaResolution = 4096

// PeriphDriver drives the servos through a PCA9685 on I2C and the ESC
// through hardware PWM on a GPIO pin.
type PeriphDriver struct {
	config Config
	bus    i2c.BusCloser
	pca    *pca9685.Dev
	esc    gpio.PinIO
	freq   physic.Frequency

	periodUs int
	servoCh  map[Channel]int

	mu     sync.Mutex
	closed bool
}

// NewPeriphDriver initializes the host drivers, opens the I2C bus and the
// PCA9685, and claims the ESC pin. Fails when any device is absent.
func NewPeriphDriver(cfg Config) (*PeriphDriver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("actuation: host init: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("actuation: open i2c %q: %w", cfg.I2CBus, err)
	}

	pca, err := pca9685.NewI2C(bus, cfg.I2CAddr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("actuation: pca9685 at %#x: %w", cfg.I2CAddr, err)
	}

	freq := physic.Frequency(cfg.FrequencyHz) * physic.Hertz
	if err := pca.SetPwmFreq(freq); err != nil {
		bus.Close()
		return nil, fmt.Errorf("actuation: pca9685 frequency: %w", err)
	}

	esc := gpioreg.ByName(cfg.ESCPin)
	if esc == nil {
		bus.Close()
		return nil, fmt.Errorf("actuation: esc pin %q not found", cfg.ESCPin)
	}

	return &PeriphDriver{
		config:   cfg,
		bus:      bus,
		pca:      pca,
		esc:      esc,
		freq:     freq,
		periodUs: 1_000_000 / cfg.FrequencyHz,
		servoCh: map[Channel]int{
			ChannelPan:        cfg.PanChannel,
			ChannelTilt:       cfg.TiltChannel,
			ChannelFrontSteer: cfg.FrontSteerChannel,
			ChannelRearSteer:  cfg.RearSteerChannel,
		},
	}, nil
}

// SetPulse writes an ESC pulse width.
func (d *PeriphDriver) SetPulse(ch Channel, us int) error {
	if ch != ChannelThrottle {
		return fmt.Errorf("%w: %s takes an angle", ErrUnsupportedChannel, ch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	return d.esc.PWM(pulseDuty(us, d.periodUs), d.freq)
}

// SetAngle writes a servo angle as a PCA9685 on/off count.
func (d *PeriphDriver) SetAngle(ch Channel, deg int) error {
	pin, ok := d.servoCh[ch]
	if !ok {
		return fmt.Errorf("%w: %s takes a pulse", ErrUnsupportedChannel, ch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	us := servoPulseUs(deg, d.config.ServoMinPulseUs, d.config.ServoMaxPulseUs)
	return d.pca.SetPwm(pin, 0, gpio.Duty(pulseCounts(us, d.periodUs)))
}

// servoPulseUs maps an angle in [ServoMinAngle, ServoMaxAngle] linearly onto
// [minUs, maxUs]. Out-of-range angles are clamped.
func servoPulseUs(deg, minUs, maxUs int) int {
	deg = max(ServoMinAngle, min(ServoMaxAngle, deg))
	span := float64(maxUs - minUs)
	return minUs + int(math.Round(float64(deg-ServoMinAngle)*span/float64(ServoMaxAngle-ServoMinAngle)))
}

// pulseCounts converts a pulse width to PCA9685 on-counts for one period.
func pulseCounts(us, periodUs int) int {
	return int(math.Round(float64(us) * pcaResolution / float64(periodUs)))
}

// pulseDuty converts a pulse width to a GPIO duty cycle for one period.
func pulseDuty(us, periodUs int) gpio.Duty {
	return gpio.Duty(math.Round(float64(gpio.DutyMax) * float64(us) / float64(periodUs)))
}

// Close stops all outputs and releases the I2C bus. The Bus is expected to
// have written neutral first. Safe to call more than once.
func (d *PeriphDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if err := d.esc.Out(gpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("esc off: %w", err))
	}
	if err := d.esc.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("esc halt: %w", err))
	}
	for _, pin := range d.servoCh {
		if err := d.pca.SetPwm(pin, 0, 0); err != nil {
			errs = append(errs, fmt.Errorf("servo %d off: %w", pin, err))
		}
	}
	if err := d.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("i2c close: %w", err))
	}
	return errors.Join(errs...)
}

// Ensure PeriphDriver implements Driver
var _ Driver = (*PeriphDriver)(nil)
