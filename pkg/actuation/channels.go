// Package actuation maps normalized vehicle commands to ESC pulse widths and
// servo angles, and guarantees the hardware is left in neutral.
//
// The package follows the Interface Segregation Principle: consumers depend
// on ThrottleController, SteeringController or PanTiltController, and the
// Bus implements all of them on top of a hardware Driver.
package actuation

import "fmt"

// Channel identifies a logical actuator.
type Channel int

const (
	ChannelThrottle Channel = iota
	ChannelFrontSteer
	ChannelRearSteer
	ChannelPan
	ChannelTilt
)

// Channels lists every logical actuator, in neutralization order.
var Channels = []Channel{ChannelThrottle, ChannelFrontSteer, ChannelRearSteer, ChannelPan, ChannelTilt}

func (c Channel) String() string {
	switch c {
	case ChannelThrottle:
		return "throttle"
	case ChannelFrontSteer:
		return "front_steer"
	case ChannelRearSteer:
		return "rear_steer"
	case ChannelPan:
		return "pan"
	case ChannelTilt:
		return "tilt"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ChannelMap is the fixed linear map of one channel: the hardware value at
// command -1, 0 and +1. Min < Neutral < Max is not required for servos that
// are mounted reversed, but Bounds always returns (low, high).
type ChannelMap struct {
	Min     int `yaml:"min" json:"min"`
	Neutral int `yaml:"neutral" json:"neutral"`
	Max     int `yaml:"max" json:"max"`
}

// Bounds returns the safe hardware range of the channel.
func (m ChannelMap) Bounds() (low, high int) {
	low, high = m.Min, m.Max
	if low > high {
		low, high = high, low
	}
	return low, high
}

// Limit clamps a hardware value into the channel's safe range.
func (m ChannelMap) Limit(v int) int {
	low, high := m.Bounds()
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// Validate checks the neutral value lies inside the range.
func (m ChannelMap) Validate() error {
	low, high := m.Bounds()
	if low == high {
		return fmt.Errorf("empty range %d..%d", m.Min, m.Max)
	}
	if m.Neutral < low || m.Neutral > high {
		return fmt.Errorf("neutral %d outside %d..%d", m.Neutral, low, high)
	}
	return nil
}

// ESC constants for the Quicrun 880, in microseconds.
const (
	ESCNeutralPulse     = 1575
	ESCFullForwardPulse = 2000
	ESCFullReversePulse = 1000
)

// Servo constants, in degrees.
const (
	ServoMinAngle     = 0
	ServoNeutralAngle = 90
	ServoMaxAngle     = 180
)

// Config describes the channel table and the hardware wiring.
type Config struct {
	ESC   ChannelMap `yaml:"esc"`   // microseconds: Min = full reverse, Max = full forward
	Servo ChannelMap `yaml:"servo"` // degrees, shared by all four servos

	// Wiring
	ESCPin            string `yaml:"esc_pin"`
	I2CBus            string `yaml:"i2c_bus"` // "" = first bus
	I2CAddr           uint16 `yaml:"i2c_addr"`
	PanChannel        int    `yaml:"pan_channel"`
	TiltChannel       int    `yaml:"tilt_channel"`
	RearSteerChannel  int    `yaml:"rear_steer_channel"`
	FrontSteerChannel int    `yaml:"front_steer_channel"`

	// PWM timing
	FrequencyHz     int `yaml:"frequency_hz"`
	ServoMinPulseUs int `yaml:"servo_min_pulse_us"` // pulse at ServoMinAngle
	ServoMaxPulseUs int `yaml:"servo_max_pulse_us"` // pulse at ServoMaxAngle
}

// DefaultConfig returns the wiring of the reference vehicle: ESC on GPIO18,
// servos on a PCA9685 at 0x40, channels 12-15, 50 Hz.
func DefaultConfig() Config {
	return Config{
		ESC:   ChannelMap{Min: ESCFullReversePulse, Neutral: ESCNeutralPulse, Max: ESCFullForwardPulse},
		Servo: ChannelMap{Min: ServoMinAngle, Neutral: ServoNeutralAngle, Max: ServoMaxAngle},

		ESCPin:            "GPIO18",
		I2CAddr:           0x40,
		PanChannel:        12,
		TiltChannel:       13,
		RearSteerChannel:  14,
		FrontSteerChannel: 15,

		FrequencyHz:     50,
		ServoMinPulseUs: 500,
		ServoMaxPulseUs: 2500,
	}
}

// Validate checks the channel table.
func (c Config) Validate() error {
	if err := c.ESC.Validate(); err != nil {
		return fmt.Errorf("actuation: esc: %w", err)
	}
	if err := c.Servo.Validate(); err != nil {
		return fmt.Errorf("actuation: servo: %w", err)
	}
	if c.FrequencyHz <= 0 {
		return fmt.Errorf("actuation: frequency must be positive")
	}
	if c.ServoMinPulseUs <= 0 || c.ServoMaxPulseUs <= c.ServoMinPulseUs {
		return fmt.Errorf("actuation: bad servo pulse range %d..%d", c.ServoMinPulseUs, c.ServoMaxPulseUs)
	}
	if period := 1_000_000 / c.FrequencyHz; c.ServoMaxPulseUs >= period || c.ESC.Max >= period {
		return fmt.Errorf("actuation: pulse longer than the %dus PWM period", period)
	}
	return nil
}
