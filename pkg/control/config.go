// Package control runs the fixed-rate vehicle loop: gamepad in, actuation
// out, with the camera mount optionally handed to the tracking controller.
package control

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-rover/pkg/input"
)

// Mode selects who owns the pan/tilt servos.
type Mode int32

const (
	// ModeManual holds pan/tilt at neutral.
	ModeManual Mode = iota
	// ModeTracking gives pan/tilt to the tracking controller.
	ModeTracking
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "MANUAL"
	case ModeTracking:
		return "TRACKING"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// Config holds loop timing and input bindings.
type Config struct {
	// Period is the tick interval without a tracker.
	Period time.Duration `yaml:"period" json:"period"`
	// TrackingPeriod is the tick interval when a tracker is attached.
	TrackingPeriod time.Duration `yaml:"tracking_period" json:"tracking_period"`

	FrontAxis    string `yaml:"front_axis" json:"front_axis"`
	RearAxis     string `yaml:"rear_axis" json:"rear_axis"`
	ToggleButton string `yaml:"toggle_button" json:"toggle_button"`

	// StartTracking starts in ModeTracking when a tracker is attached.
	StartTracking bool `yaml:"start_tracking" json:"start_tracking"`

	// HeartbeatTicks logs loop stats every N ticks. 0 disables.
	HeartbeatTicks uint64 `yaml:"heartbeat_ticks" json:"heartbeat_ticks"`
}

// DefaultConfig ticks at 50ms (20ms with tracking), steers with both
// sticks and toggles tracking with Y.
func DefaultConfig() Config {
	return Config{
		Period:         50 * time.Millisecond,
		TrackingPeriod: 20 * time.Millisecond,
		FrontAxis:      input.AxisLeftX,
		RearAxis:       input.AxisRightX,
		ToggleButton:   input.ButtonY,
		StartTracking:  true,
		HeartbeatTicks: 200,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("control: period must be positive, got %v", c.Period)
	}
	if c.TrackingPeriod <= 0 {
		return fmt.Errorf("control: tracking period must be positive, got %v", c.TrackingPeriod)
	}
	if c.FrontAxis == "" || c.RearAxis == "" {
		return fmt.Errorf("control: steering axes must be named")
	}
	return nil
}
