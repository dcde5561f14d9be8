// Package debug provides global debug logging flags
package debug

import (
	"fmt"

	"github.com/teslashibe/go-rover/internal/log"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Tracking controls whether verbose per-frame perception and tracking logs
// are shown. Use --debug-tracking to enable these very verbose logs.
var Tracking bool

// Log emits a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		log.Debug(fmt.Sprintf(format, args...))
	}
}

// TrackLog emits a message only if tracking debug mode is enabled
func TrackLog(format string, args ...interface{}) {
	if Tracking {
		log.Debug(fmt.Sprintf(format, args...), "scope", "tracking")
	}
}
