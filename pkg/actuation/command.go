package actuation

import "math"

// ServoCommand is one normalized command per axis. After Clamp every field
// is in [-1, 1]; 0 is neutral.
type ServoCommand struct {
	Throttle   float64 `json:"throttle"`
	FrontSteer float64 `json:"front_steer"`
	RearSteer  float64 `json:"rear_steer"`
	Pan        float64 `json:"pan"`
	Tilt       float64 `json:"tilt"`
}

// Clamp returns a copy with every axis restricted to [-1, 1].
func (c ServoCommand) Clamp() ServoCommand {
	return ServoCommand{
		Throttle:   clampUnit(c.Throttle),
		FrontSteer: clampUnit(c.FrontSteer),
		RearSteer:  clampUnit(c.RearSteer),
		Pan:        clampUnit(c.Pan),
		Tilt:       clampUnit(c.Tilt),
	}
}

// VehicleState is the set of hardware values last written: throttle in
// microseconds, the four servos in degrees. It is comparable with ==.
type VehicleState struct {
	Throttle   int `json:"throttle"`
	FrontSteer int `json:"front_s"`
	RearSteer  int `json:"rear_s"`
	Pan        int `json:"pan"`
	Tilt       int `json:"tilt"`
}

// NeutralState returns the state after ReturnNeutral.
func NeutralState(cfg Config) VehicleState {
	return VehicleState{
		Throttle:   cfg.ESC.Neutral,
		FrontSteer: cfg.Servo.Neutral,
		RearSteer:  cfg.Servo.Neutral,
		Pan:        cfg.Servo.Neutral,
		Tilt:       cfg.Servo.Neutral,
	}
}

// clampUnit restricts v to [-1, 1]. NaN maps to 0.
func clampUnit(v float64) float64 {
	if v != v {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// ThrottlePulse maps a normalized throttle to an ESC pulse. Positive values
// interpolate from neutral to Max, negative ones from neutral to Min, and 0
// is exactly Neutral.
func ThrottlePulse(m ChannelMap, v float64) int {
	v = clampUnit(v)
	var pulse int
	switch {
	case v > 0:
		pulse = int(math.Round(float64(m.Neutral) + v*float64(m.Max-m.Neutral)))
	case v < 0:
		pulse = int(math.Round(float64(m.Neutral) - (-v)*float64(m.Neutral-m.Min)))
	default:
		return m.Neutral
	}
	return m.Limit(pulse)
}

// ServoAngle maps a normalized command to an angle on the channel: -1 -> Min,
// +1 -> Max, linear through the midpoint. Rounds to the nearest degree so a
// whole angle survives the trip through a normalized command.
func ServoAngle(m ChannelMap, v float64) int {
	v = clampUnit(v)
	return m.Limit(int(math.Round(float64(m.Min) + (v+1)*float64(m.Max-m.Min)/2)))
}
