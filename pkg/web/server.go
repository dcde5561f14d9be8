// Package web serves a read-only dashboard for the rover: vehicle state,
// current mode, the latest detection and a live camera view.
//
// The server pulls from its sources on its own schedule; nothing in the
// control path waits on it.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/input"
	"github.com/teslashibe/go-rover/pkg/perception"
)

// VehicleSource reports the control loop's state.
type VehicleSource interface {
	State() actuation.VehicleState
	Mode() control.Mode
	Stats() control.Stats
}

// WorkerSource reports perception worker counters.
type WorkerSource interface {
	Stats() perception.Stats
}

// ConnectionSource reports whether the gamepad is connected.
type ConnectionSource interface {
	Connected() bool
}

var (
	_ VehicleSource    = (*control.Loop)(nil)
	_ WorkerSource     = (*perception.Worker)(nil)
	_ ConnectionSource = (*input.Gamepad)(nil)
)

// Sources are what the dashboard reads. Any of them may be nil.
type Sources struct {
	Vehicle    VehicleSource
	Perception *perception.SharedState
	Worker     WorkerSource
	Gamepad    ConnectionSource
	Session    string
}

// Config holds dashboard settings.
type Config struct {
	Port         string        `yaml:"port" json:"port"` // "" disables the dashboard
	StatusPeriod time.Duration `yaml:"status_period" json:"status_period"`
	FramePeriod  time.Duration `yaml:"frame_period" json:"frame_period"`
	JPEGQuality  int           `yaml:"jpeg_quality" json:"jpeg_quality"`
}

// DefaultConfig serves on :8080, status at 10Hz and camera at 5Hz.
func DefaultConfig() Config {
	return Config{
		Port:         "8080",
		StatusPeriod: 100 * time.Millisecond,
		FramePeriod:  200 * time.Millisecond,
		JPEGQuality:  70,
	}
}

// Encoder turns a frame into JPEG bytes.
type Encoder func(f camera.Frame, quality int) ([]byte, error)

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	config  Config
	sources Sources
	encode  Encoder
	logger  *slog.Logger

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	cameraHub *hub.Hub

	lastFrameSeq uint64
}

// NewServer creates the dashboard.
func NewServer(cfg Config, src Sources) *Server {
	def := DefaultConfig()
	if cfg.StatusPeriod <= 0 {
		cfg.StatusPeriod = def.StatusPeriod
	}
	if cfg.FramePeriod <= 0 {
		cfg.FramePeriod = def.FramePeriod
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = def.JPEGQuality
	}

	s := &Server{
		config:    cfg,
		sources:   src,
		encode:    camera.EncodeJPEG,
		logger:    log.With("component", "web"),
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rover Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/perception", s.handlePerception)
	api.Get("/frame.jpg", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// SetEncoder replaces the JPEG encoder.
func (s *Server) SetEncoder(e Encoder) {
	s.encode = e
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and the publisher, then serves on the configured
// port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run()
	go s.cameraHub.Run()
	go s.publish(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web dashboard listening", "addr", ln.Addr().String())
		errc <- s.app.Listener(ln)
	}()

	select {
	case <-ctx.Done():
		s.statusHub.Stop()
		s.cameraHub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errc:
		s.statusHub.Stop()
		s.cameraHub.Stop()
		return err
	}
}

// publish pushes status and camera frames to websocket clients.
func (s *Server) publish(ctx context.Context) {
	statusTicker := time.NewTicker(s.config.StatusPeriod)
	frameTicker := time.NewTicker(s.config.FramePeriod)
	defer statusTicker.Stop()
	defer frameTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statusTicker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
				s.logger.Warn("status encode failed", "error", err)
			}
		case <-frameTicker.C:
			if s.cameraHub.ClientCount() == 0 {
				continue
			}
			data, ok := s.latestFrameJPEG(true)
			if ok {
				s.cameraHub.BroadcastBinary(data)
			}
		}
	}
}

// latestFrameJPEG encodes the newest frame. With onlyNew it skips a frame
// already sent by the publisher.
func (s *Server) latestFrameJPEG(onlyNew bool) ([]byte, bool) {
	if s.sources.Perception == nil {
		return nil, false
	}
	snap := s.sources.Perception.Snapshot()
	if !snap.Valid() || snap.Frame.Empty() {
		return nil, false
	}
	if onlyNew {
		if snap.Seq == s.lastFrameSeq {
			return nil, false
		}
		s.lastFrameSeq = snap.Seq
	}

	data, err := s.encode(snap.Frame, s.config.JPEGQuality)
	if err != nil {
		s.logger.Warn("frame encode failed", "error", err)
		return nil, false
	}
	return data, true
}

// errNoFrame is returned by handlers when nothing has been captured yet.
var errNoFrame = errors.New("web: no frame available")
