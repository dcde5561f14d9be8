// Package input reads an Xbox-style gamepad and turns it into normalized
// drive values.
//
// The Gamepad owns one Device at a time, obtained from a Backend. The
// Backend abstraction keeps the Linux joystick API out of tests: production
// code uses JoystickBackend, tests use MockBackend.
package input

import (
	"fmt"
	"time"
)

// ConflictPolicy decides what ReadThrottle returns when both triggers are
// pressed.
type ConflictPolicy string

const (
	// ConflictNeutral returns 0 when both triggers are pressed.
	ConflictNeutral ConflictPolicy = "neutral"
	// ConflictForward lets the forward trigger win.
	ConflictForward ConflictPolicy = "forward"
)

// Config holds gamepad settings.
type Config struct {
	// Deadzone is compared with raw+1 for each trigger. Triggers rest at -1.
	Deadzone float64 `yaml:"deadzone" json:"deadzone"`

	// PollInterval is how often WaitForConnection re-enumerates devices.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// TriggerConflict applies when RT and LT are both pressed.
	TriggerConflict ConflictPolicy `yaml:"trigger_conflict" json:"trigger_conflict"`

	// DeviceIndex selects which enumerated device to open.
	DeviceIndex int `yaml:"device_index" json:"device_index"`

	// AxisMap and ButtonMap override the Xbox layout. Nil means XboxAxes
	// and XboxButtons.
	AxisMap   map[string]int `yaml:"axis_map,omitempty" json:"axis_map,omitempty"`
	ButtonMap map[string]int `yaml:"button_map,omitempty" json:"button_map,omitempty"`
}

// DefaultConfig returns the settings of the stock controller.
func DefaultConfig() Config {
	return Config{
		Deadzone:        0.01,
		PollInterval:    time.Second,
		TriggerConflict: ConflictNeutral,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Deadzone < 0 || c.Deadzone >= 2 {
		return fmt.Errorf("input: deadzone %v outside [0, 2)", c.Deadzone)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("input: poll interval must be positive, got %v", c.PollInterval)
	}
	switch c.TriggerConflict {
	case ConflictNeutral, ConflictForward:
	default:
		return fmt.Errorf("input: unknown trigger conflict policy %q", c.TriggerConflict)
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("input: negative device index %d", c.DeviceIndex)
	}
	return nil
}

func (c Config) axes() map[string]int {
	if c.AxisMap != nil {
		return c.AxisMap
	}
	return XboxAxes
}

func (c Config) buttons() map[string]int {
	if c.ButtonMap != nil {
		return c.ButtonMap
	}
	return XboxButtons
}
