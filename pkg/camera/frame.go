package camera

import (
	"errors"
	"time"
)

// Sentinel errors for camera operations.
var (
	// ErrOpenFailed is returned when a capture device cannot be acquired.
	ErrOpenFailed = errors.New("camera: open failed")

	// ErrCaptureFailed is returned when a single frame read fails.
	// It is transient; the caller decides whether to retry.
	ErrCaptureFailed = errors.New("camera: capture failed")

	// ErrReleased is returned by GetFrame after Release.
	ErrReleased = errors.New("camera: released")
)

// PixelFormat describes the layout of Frame.Data.
type PixelFormat int

const (
	// FormatBGR24 is 3 bytes per pixel, OpenCV's native order.
	FormatBGR24 PixelFormat = iota
	// FormatGray8 is 1 byte per pixel.
	FormatGray8
)

// Channels returns the bytes per pixel of the format.
func (f PixelFormat) Channels() int {
	if f == FormatGray8 {
		return 1
	}
	return 3
}

func (f PixelFormat) String() string {
	switch f {
	case FormatBGR24:
		return "bgr24"
	case FormatGray8:
		return "gray8"
	}
	return "unknown"
}

// Frame is one captured image. Data is packed row-major with no padding.
// Every capture allocates a new buffer, so a Frame handed to perception is
// never written again and may be shared by readers.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
	Seq       uint64
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width == 0 || f.Height == 0
}

// Center returns the geometric center of the frame in pixels.
func (f Frame) Center() (x, y float64) {
	return float64(f.Width) / 2, float64(f.Height) / 2
}

// Source is the capture side of a camera.
type Source interface {
	// GetFrame captures the next frame. Failures wrap ErrCaptureFailed.
	GetFrame() (Frame, error)

	// Release frees the device. It is safe to call more than once.
	Release() error
}
