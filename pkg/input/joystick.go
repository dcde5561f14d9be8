package input

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/0xcafed00d/joystick"
)

// rawAxisMax is the full-scale value of the Linux joystick API.
const rawAxisMax = 32767

// JoystickBackend enumerates /dev/input/js* and opens devices with the
// joystick package.
type JoystickBackend struct {
	// Pattern overrides the device glob. Empty means /dev/input/js*.
	Pattern string
}

var _ Backend = (*JoystickBackend)(nil)

// NewJoystickBackend creates a backend for the Linux joystick API.
func NewJoystickBackend() *JoystickBackend {
	return &JoystickBackend{}
}

func (b *JoystickBackend) pattern() string {
	if b.Pattern != "" {
		return b.Pattern
	}
	return "/dev/input/js*"
}

// ids returns the numeric ids of the attached devices in ascending order.
func (b *JoystickBackend) ids() ([]int, error) {
	paths, err := filepath.Glob(b.pattern())
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(paths))
	for _, p := range paths {
		id, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(p), "js"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Count returns the number of attached joysticks.
func (b *JoystickBackend) Count() (int, error) {
	ids, err := b.ids()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Open opens the index-th attached joystick.
func (b *JoystickBackend) Open(index int) (Device, error) {
	ids, err := b.ids()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ids) {
		return nil, ErrNoDevice
	}
	js, err := joystick.Open(ids[index])
	if err != nil {
		return nil, fmt.Errorf("open js%d: %w", ids[index], err)
	}
	return &joystickDevice{js: js}, nil
}

type joystickDevice struct {
	js joystick.Joystick
}

func (d *joystickDevice) Name() string {
	return d.js.Name()
}

func (d *joystickDevice) Read() (State, error) {
	raw, err := d.js.Read()
	if err != nil {
		return State{}, err
	}
	axes := make([]float64, len(raw.AxisData))
	for i, v := range raw.AxisData {
		axes[i] = normalizeAxis(v)
	}
	return State{Axes: axes, Buttons: raw.Buttons}, nil
}

func (d *joystickDevice) Close() error {
	d.js.Close()
	return nil
}

func normalizeAxis(v int) float64 {
	f := float64(v) / rawAxisMax
	if f > 1 {
		return 1
	}
	if f < -1 {
		return -1
	}
	return f
}
