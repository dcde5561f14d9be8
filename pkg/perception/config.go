package perception

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// Config holds the worker's target selection and pacing parameters.
type Config struct {
	TargetLabel   string        `yaml:"target_label"`   // class to follow
	MinConfidence float64       `yaml:"min_confidence"` // strict lower bound
	ErrorBackoff  time.Duration `yaml:"error_backoff"`  // pause after a failed cycle
	MinCycle      time.Duration `yaml:"min_cycle"`      // 0 = run as fast as capture+inference allow
	LogEvery      uint64        `yaml:"log_every"`      // periodic stats log, in cycles
}

// DefaultConfig follows people with confidence above 0.5.
func DefaultConfig() Config {
	return Config{
		TargetLabel:   detection.LabelPerson,
		MinConfidence: 0.5,
		ErrorBackoff:  100 * time.Millisecond,
		LogEvery:      300,
	}
}
