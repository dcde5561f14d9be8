package actuation

// Driver writes hardware values to physical channels. Throttle takes a pulse
// width in microseconds; servos take an angle in degrees.
type Driver interface {
	SetPulse(ch Channel, us int) error
	SetAngle(ch Channel, deg int) error
	Close() error
}

// ThrottleController drives the ESC.
type ThrottleController interface {
	SetThrottle(v float64) (int, error)
}

// SteeringController drives the front and rear steering servos.
type SteeringController interface {
	SetSteering(front, rear float64) (int, int, error)
}

// PanTiltController drives the camera mount.
type PanTiltController interface {
	SetPanTilt(pan, tilt float64) (int, int, error)
}

// Neutralizer returns every channel to its safe value.
type Neutralizer interface {
	ReturnNeutral() error
}

// Actuator is the composite interface used by the control loop.
type Actuator interface {
	ThrottleController
	SteeringController
	PanTiltController
	Neutralizer
	State() VehicleState
}

// Ensure Bus implements Actuator
var _ Actuator = (*Bus)(nil)
