package tracking

import (
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// Controller implements the fixed-step pan/tilt law.
//
// It is not a proportional controller: each update moves an axis by exactly
// one step toward the target when the pixel offset exceeds the dead-band.
// Worst-case convergence is ceil(offset/step) updates and small oscillation
// around the dead-band edge is expected.
//
// Controller is not safe for concurrent use; the control loop owns it.
type Controller struct {
	config Config
	angles Angles
	logger *slog.Logger

	lastLogged Angles
	lastSeq    uint64 // last snapshot consumed by Step
	updates    uint64
	holds      uint64
}

// NewController creates a controller centered at 90/90.
func NewController(cfg Config) *Controller {
	return &Controller{
		config:     cfg,
		angles:     Centered(),
		lastLogged: Centered(),
		logger:     log.With("component", "tracking"),
	}
}

// SetLogger replaces the controller's logger. Call it before handing the
// controller to the control loop.
func (c *Controller) SetLogger(l *slog.Logger) {
	c.logger = l
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Angles returns the current pan/tilt angles.
func (c *Controller) Angles() Angles {
	return c.angles
}

// Reset recenters the mount.
func (c *Controller) Reset() {
	c.angles = Centered()
}

// Update applies one step of the control law for a target in a frame of the
// given size. A nil target holds the current angles.
//
// A target right of center raises pan; a target above center raises tilt.
func (c *Controller) Update(frameW, frameH int, target *detection.Detection) Angles {
	if target == nil || frameW <= 0 || frameH <= 0 {
		c.holds++
		return c.angles
	}
	c.updates++

	cx, cy := target.Center()
	dx := cx - float64(frameW)/2
	dy := cy - float64(frameH)/2

	if math.Abs(dx) > c.config.PanDeadBand {
		c.angles.Pan = clamp(c.angles.Pan+c.config.PanStep*sign(dx), MinAngle, MaxAngle)
	}
	if math.Abs(dy) > c.config.TiltDeadBand {
		// Image y grows downward: a target above center has dy < 0.
		c.angles.Tilt = clamp(c.angles.Tilt-c.config.TiltStep*sign(dy), MinAngle, MaxAngle)
	}

	c.logMovement(dx, dy)
	return c.angles
}

// Command returns the normalized pan/tilt command for the current angles.
func (c *Controller) Command() (pan, tilt float64) {
	return c.angles.Normalized()
}

// Step runs Update on a perception snapshot and returns the normalized
// command. Each published snapshot is applied at most once, so the mount
// moves one step per processed frame however fast the caller ticks. Empty,
// already consumed or stale snapshots hold the current angles.
func (c *Controller) Step(snap perception.Snapshot) (pan, tilt float64) {
	if snap.Valid() && snap.Seq == c.lastSeq {
		return c.Command()
	}

	target := snap.Target
	if !snap.Valid() {
		target = nil
	} else {
		c.lastSeq = snap.Seq
		if c.config.StaleAfter > 0 && snap.Age(time.Now()) > c.config.StaleAfter {
			target = nil
		}
	}
	c.Update(snap.Frame.Width, snap.Frame.Height, target)
	return c.Command()
}

// Stats returns how many updates moved on a target and how many held.
func (c *Controller) Stats() (updates, holds uint64) {
	return c.updates, c.holds
}

func (c *Controller) logMovement(dx, dy float64) {
	if c.logger == nil || c.config.LogThreshold <= 0 {
		return
	}
	if math.Abs(c.angles.Pan-c.lastLogged.Pan) < c.config.LogThreshold &&
		math.Abs(c.angles.Tilt-c.lastLogged.Tilt) < c.config.LogThreshold {
		return
	}
	c.logger.Info("pan/tilt moved",
		"pan", c.angles.Pan, "tilt", c.angles.Tilt, "dx", dx, "dy", dy)
	c.lastLogged = c.angles
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
