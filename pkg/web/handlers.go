package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// Status is the dashboard's view of the whole rover.
type Status struct {
	Time             time.Time               `json:"time"`
	Session          string                  `json:"session,omitempty"`
	Mode             string                  `json:"mode,omitempty"`
	Vehicle          *actuation.VehicleState `json:"vehicle,omitempty"`
	Loop             *control.Stats          `json:"loop,omitempty"`
	GamepadConnected bool                    `json:"gamepad_connected"`
	Perception       *PerceptionStatus       `json:"perception,omitempty"`
	Worker           *perception.Stats       `json:"worker,omitempty"`
}

// PerceptionStatus describes the latest published pair.
type PerceptionStatus struct {
	Seq         uint64               `json:"seq"`
	AgeMs       int64                `json:"age_ms"`
	FrameWidth  int                  `json:"frame_width"`
	FrameHeight int                  `json:"frame_height"`
	Target      *detection.Detection `json:"target"`
}

func (s *Server) status() Status {
	st := Status{
		Time:    time.Now(),
		Session: s.sources.Session,
	}

	if v := s.sources.Vehicle; v != nil {
		state := v.State()
		stats := v.Stats()
		st.Vehicle = &state
		st.Loop = &stats
		st.Mode = v.Mode().String()
	}
	if g := s.sources.Gamepad; g != nil {
		st.GamepadConnected = g.Connected()
	}
	if p := s.perceptionStatus(st.Time); p != nil {
		st.Perception = p
	}
	if w := s.sources.Worker; w != nil {
		stats := w.Stats()
		st.Worker = &stats
	}
	return st
}

func (s *Server) perceptionStatus(now time.Time) *PerceptionStatus {
	if s.sources.Perception == nil {
		return nil
	}
	snap := s.sources.Perception.Snapshot()
	return &PerceptionStatus{
		Seq:         snap.Seq,
		AgeMs:       snap.Age(now).Milliseconds(),
		FrameWidth:  snap.Frame.Width,
		FrameHeight: snap.Frame.Height,
		Target:      snap.Target,
	}
}

// handleIndex serves the dashboard page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexHTML)
}

// handleStatus returns the rover's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handlePerception returns the latest perception pair without the image
func (s *Server) handlePerception(c *fiber.Ctx) error {
	p := s.perceptionStatus(time.Now())
	if p == nil {
		return fiber.NewError(fiber.StatusNotFound, "perception not running")
	}
	return c.JSON(p)
}

// handleFrame returns the latest camera frame as JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	data, ok := s.latestFrameJPEG(false)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, errNoFrame.Error())
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleStatusWS streams status updates, starting with the current one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	var initial []hub.Message
	if msg, err := hub.EncodeJSON(s.status()); err == nil {
		initial = append(initial, msg)
	}
	if client := hub.NewClient(s.statusHub, c, initial...); client != nil {
		client.Run()
	}
}

// handleCameraWS streams JPEG frames, starting with the latest one
func (s *Server) handleCameraWS(c *websocket.Conn) {
	var initial []hub.Message
	if data, ok := s.latestFrameJPEG(false); ok {
		initial = append(initial, hub.NewBinaryMessage(data))
	}
	if client := hub.NewClient(s.cameraHub, c, initial...); client != nil {
		client.Run()
	}
}
