package input

// Axis names.
const (
	AxisLeftX  = "LEFT_X"
	AxisLeftY  = "LEFT_Y"
	AxisRightX = "RIGHT_X"
	AxisRightY = "RIGHT_Y"
	AxisRT     = "RT"
	AxisLT     = "LT"
)

// Button names.
const (
	ButtonA     = "A"
	ButtonB     = "B"
	ButtonX     = "X"
	ButtonY     = "Y"
	ButtonLB    = "LB"
	ButtonRB    = "RB"
	ButtonBack  = "BACK"
	ButtonStart = "START"
	ButtonLS    = "LS"
	ButtonRS    = "RS"
)

// XboxAxes maps axis names to device axis indices.
var XboxAxes = map[string]int{
	AxisLeftX:  0,
	AxisLeftY:  1,
	AxisRightX: 2,
	AxisRightY: 3,
	AxisRT:     4,
	AxisLT:     5,
}

// XboxButtons maps button names to device button indices.
var XboxButtons = map[string]int{
	ButtonA:     0,
	ButtonB:     1,
	ButtonX:     2,
	ButtonY:     3,
	ButtonLB:    4,
	ButtonRB:    5,
	ButtonBack:  6,
	ButtonStart: 7,
	ButtonLS:    8,
	ButtonRS:    9,
}
