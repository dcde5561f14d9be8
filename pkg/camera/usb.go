package camera

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"gocv.io/x/gocv"
)

// USBCamera captures frames from a V4L/USB device through OpenCV.
// It is owned by a single goroutine (the perception worker); only Release
// may be called concurrently with GetFrame.
type USBCamera struct {
	cap    *gocv.VideoCapture
	img    gocv.Mat
	config Config
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	seq      uint64
	released bool
}

// Open acquires the camera at the given device index. If cfg.Device is set
// it takes precedence over the index.
func Open(index int, cfg Config) (*USBCamera, error) {
	if cfg.Device != "" {
		return OpenPath(cfg.Device, cfg)
	}
	return open(index, fmt.Sprintf("index %d", index), cfg)
}

// OpenPath acquires the camera at a device path such as /dev/video2.
func OpenPath(path string, cfg Config) (*USBCamera, error) {
	return open(path, "device path "+path, cfg)
}

func open(device interface{}, name string, cfg Config) (*USBCamera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid config: %v", ErrOpenFailed, errs)
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, name, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenFailed, name)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	c := &USBCamera{
		cap:    vc,
		img:    gocv.NewMat(),
		config: cfg,
		name:   name,
		logger: log.With("component", "camera", "device", name),
	}
	c.logger.Info("camera opened",
		"width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
	return c, nil
}

// SetFPS changes the requested capture rate.
func (c *USBCamera) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.config.Framerate = fps
	c.cap.Set(gocv.VideoCaptureFPS, float64(fps))
}

// Config returns the configuration the camera was opened with.
func (c *USBCamera) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// GetFrame reads one frame and copies it out of OpenCV memory.
func (c *USBCamera) GetFrame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return Frame{}, ErrReleased
	}

	if ok := c.cap.Read(&c.img); !ok || c.img.Empty() {
		return Frame{}, fmt.Errorf("%w: %s", ErrCaptureFailed, c.name)
	}

	format := FormatBGR24
	switch c.img.Channels() {
	case 1:
		format = FormatGray8
	case 4:
		gocv.CvtColor(c.img, &c.img, gocv.ColorBGRAToBGR)
	}

	c.seq++
	return Frame{
		Data:      c.img.ToBytes(),
		Width:     c.img.Cols(),
		Height:    c.img.Rows(),
		Format:    format,
		Timestamp: time.Now(),
		Seq:       c.seq,
	}, nil
}

// Release closes the device. Subsequent calls are no-ops.
func (c *USBCamera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	c.released = true

	c.img.Close()
	if err := c.cap.Close(); err != nil {
		return fmt.Errorf("camera: release %s: %w", c.name, err)
	}
	c.logger.Info("camera released", "frames", c.seq)
	return nil
}

// Ensure USBCamera implements Source
var _ Source = (*USBCamera)(nil)
