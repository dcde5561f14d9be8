package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rover/internal/log"
)

func newConnected(t *testing.T, cfg Config) (*Gamepad, *MockBackend) {
	t.Helper()
	b := NewMockBackend(1)
	g := NewGamepad(b, cfg)
	g.SetLogger(log.Discard())
	require.NoError(t, g.WaitForConnection(context.Background()))
	return g, b
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.01, cfg.Deadzone)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, ConflictNeutral, cfg.TriggerConflict)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative deadzone", func(c *Config) { c.Deadzone = -0.1 }},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }},
		{"unknown policy", func(c *Config) { c.TriggerConflict = "reverse" }},
		{"negative index", func(c *Config) { c.DeviceIndex = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestReadThrottle(t *testing.T) {
	tests := []struct {
		name   string
		rt, lt float64
		policy ConflictPolicy
		want   float64
	}{
		{"both released", -1, -1, ConflictNeutral, 0},
		{"rt full", 1, -1, ConflictNeutral, 1},
		{"rt half", 0, -1, ConflictNeutral, 0.5},
		{"lt full", -1, 1, ConflictNeutral, -1},
		{"lt quarter", -1, -0.5, ConflictNeutral, -0.25},
		{"inside deadzone", -0.995, -0.995, ConflictNeutral, 0},
		{"both pressed neutral", 1, 1, ConflictNeutral, 0},
		{"both pressed forward wins", 0.5, 1, ConflictForward, 0.75},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TriggerConflict = tc.policy
			g, b := newConnected(t, cfg)

			b.Device().SetNamed(AxisRT, tc.rt)
			b.Device().SetNamed(AxisLT, tc.lt)

			got, err := g.ReadThrottle()
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestReadThrottle_Range(t *testing.T) {
	g, b := newConnected(t, DefaultConfig())
	for raw := -1.0; raw <= 1.0; raw += 0.05 {
		b.Device().SetNamed(AxisRT, raw)
		b.Device().SetNamed(AxisLT, -1)
		v, err := g.ReadThrottle()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)

		b.Device().SetNamed(AxisRT, -1)
		b.Device().SetNamed(AxisLT, raw)
		v, err = g.ReadThrottle()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 0.0)
	}
}

func TestGetAxisAndButton(t *testing.T) {
	g, b := newConnected(t, DefaultConfig())
	b.Device().SetNamed(AxisLeftX, -0.4)
	b.Device().SetButton(XboxButtons[ButtonY], true)

	x, err := g.GetAxis(AxisLeftX)
	require.NoError(t, err)
	assert.Equal(t, -0.4, x)

	y, err := g.GetButton(ButtonY)
	require.NoError(t, err)
	assert.True(t, y)

	a, err := g.GetButton(ButtonA)
	require.NoError(t, err)
	assert.False(t, a)
}

func TestInvalidNames(t *testing.T) {
	g, _ := newConnected(t, DefaultConfig())

	_, err := g.GetAxis("TRIGGER_HAPPY")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = g.GetButton("Z")
	assert.ErrorIs(t, err, ErrInvalidName)

	// Names are checked before the device, so this holds without one too.
	idle := NewGamepad(NewMockBackend(0), DefaultConfig())
	_, err = idle.GetAxis("nope")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCustomAxisMap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AxisMap = map[string]int{AxisLeftX: 0, AxisRT: 5, AxisLT: 2}
	g, b := newConnected(t, cfg)

	b.Device().SetAxis(5, 1)
	b.Device().SetAxis(2, -1)

	v, err := g.ReadThrottle()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = g.GetAxis(AxisRightX)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestReadWithoutDevice(t *testing.T) {
	g := NewGamepad(NewMockBackend(0), DefaultConfig())
	_, err := g.ReadThrottle()
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.False(t, g.Connected())
}

func TestWaitForConnection_ReturnsWithinOnePoll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = 20 * time.Millisecond
	b := NewMockBackend(0)
	g := NewGamepad(b, cfg)
	g.SetLogger(log.Discard())

	done := make(chan error, 1)
	go func() { done <- g.WaitForConnection(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("returned before a device was attached: %v", err)
	default:
	}

	attached := time.Now()
	b.SetCount(1)

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Less(t, time.Since(attached), cfg.PollInterval+30*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("WaitForConnection did not return after device attached")
	}

	assert.True(t, g.Connected())
	assert.Equal(t, 1, b.Opens())
	assert.Equal(t, "Mock Xbox Controller", g.Name())
}

func TestWaitForConnection_Cancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	g := NewGamepad(NewMockBackend(0), cfg)
	g.SetLogger(log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := g.WaitForConnection(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, g.Connected())
}

func TestWaitForConnection_OpenFailure(t *testing.T) {
	b := NewMockBackend(1)
	b.FailOpen(errors.New("permission denied"))
	g := NewGamepad(b, DefaultConfig())
	g.SetLogger(log.Discard())

	err := g.WaitForConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestUpdateConnectionStatus(t *testing.T) {
	g, b := newConnected(t, DefaultConfig())
	assert.True(t, g.UpdateConnectionStatus())

	b.SetCount(0)
	assert.False(t, g.UpdateConnectionStatus())
	assert.False(t, g.Connected())
	assert.Equal(t, 1, b.Device().Closes())

	// Device back, but not reopened until WaitForConnection.
	b.SetCount(1)
	assert.False(t, g.UpdateConnectionStatus())

	require.NoError(t, g.WaitForConnection(context.Background()))
	assert.True(t, g.UpdateConnectionStatus())
	assert.Equal(t, 2, b.Opens())
}

func TestUpdateConnectionStatus_EnumerationError(t *testing.T) {
	g, b := newConnected(t, DefaultConfig())
	b.FailCount(errors.New("udev gone"))
	assert.False(t, g.UpdateConnectionStatus())
}

func TestReadFailure_IsDisconnect(t *testing.T) {
	g, b := newConnected(t, DefaultConfig())
	b.Device().FailRead(errors.New("no such device"))

	_, err := g.ReadThrottle()
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.False(t, g.Connected())

	_, err = g.GetAxis(AxisLeftX)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestClose(t *testing.T) {
	g, b := newConnected(t, DefaultConfig())
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.Equal(t, 1, b.Device().Closes())
	assert.False(t, g.Connected())
}

func TestNormalizeAxis(t *testing.T) {
	assert.Equal(t, 1.0, normalizeAxis(32767))
	assert.Equal(t, -1.0, normalizeAxis(-32768))
	assert.Equal(t, 0.0, normalizeAxis(0))
	assert.InDelta(t, 0.5, normalizeAxis(16384), 1e-4)
}

func TestJoystickBackend_Enumeration(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"js2", "js0", "event3"} {
		require.NoError(t, touch(dir+"/"+name))
	}
	b := &JoystickBackend{Pattern: dir + "/js*"}

	n, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := b.ids()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, ids)

	_, err = b.Open(5)
	assert.ErrorIs(t, err, ErrNoDevice)
}
