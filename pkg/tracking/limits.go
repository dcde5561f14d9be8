// Package tracking keeps a detected target centered with a fixed-step
// pan/tilt control law.
package tracking

// Servo travel of the pan/tilt mount, in degrees.
const (
	MinAngle    = 0.0
	MaxAngle    = 180.0
	CenterAngle = 90.0
	halfTravel  = (MaxAngle - MinAngle) / 2
)

// Angles is the pan/tilt integrator state, always within [MinAngle, MaxAngle].
type Angles struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
}

// Centered returns the 90/90 rest position.
func Centered() Angles {
	return Angles{Pan: CenterAngle, Tilt: CenterAngle}
}

// Normalized converts the angles to [-1, 1] commands. Tilt is inverted so
// that "up is positive": (angle-90)/90 for pan, (90-angle)/90 for tilt.
func (a Angles) Normalized() (pan, tilt float64) {
	return (a.Pan - CenterAngle) / halfTravel, (CenterAngle - a.Tilt) / halfTravel
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
