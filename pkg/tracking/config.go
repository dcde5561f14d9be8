package tracking

import "time"

// Config holds the step-law parameters for pan/tilt tracking
type Config struct {
	// Dead-bands: offsets from the frame center at or below these are ignored
	PanDeadBand  float64 `yaml:"pan_dead_band"`  // pixels
	TiltDeadBand float64 `yaml:"tilt_dead_band"` // pixels

	// Fixed step applied once per update when outside the dead-band
	PanStep  float64 `yaml:"pan_step"`  // degrees
	TiltStep float64 `yaml:"tilt_step"` // degrees

	// Snapshots older than this are treated as "no detection" (0 = never stale)
	StaleAfter time.Duration `yaml:"stale_after"`

	// Only log angle changes of at least this many degrees
	LogThreshold float64 `yaml:"log_threshold"`
}

// DefaultConfig returns the tuning used with 320x240 frames: 50px dead-band,
// 2 degree steps.
func DefaultConfig() Config {
	return Config{
		PanDeadBand:  50,
		TiltDeadBand: 50,
		PanStep:      2,
		TiltStep:     2,
		StaleAfter:   500 * time.Millisecond,
		LogThreshold: 10,
	}
}

// SlowConfig returns a configuration for slower, calmer tracking
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.PanStep = 1
	cfg.TiltStep = 1
	cfg.PanDeadBand = 60
	cfg.TiltDeadBand = 60
	return cfg
}

// AggressiveConfig returns a configuration for very fast tracking.
// Expect more oscillation around the dead-band edge.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.PanStep = 4
	cfg.TiltStep = 3
	cfg.PanDeadBand = 35
	cfg.TiltDeadBand = 35
	return cfg
}

// ConvergenceCycles returns the worst-case number of updates needed to
// cancel an angular error with a fixed step: ceil(err/step).
func ConvergenceCycles(errDeg, stepDeg float64) int {
	if stepDeg <= 0 {
		return 0
	}
	if errDeg < 0 {
		errDeg = -errDeg
	}
	n := int(errDeg / stepDeg)
	if float64(n)*stepDeg < errDeg {
		n++
	}
	return n
}
