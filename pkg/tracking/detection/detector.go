// Package detection defines the object detector capability used by
// perception: a black box that maps a camera frame to candidate detections.
package detection

import (
	"errors"

	"github.com/teslashibe/go-rover/pkg/camera"
)

// ErrInference wraps every failure raised while running a detector.
var ErrInference = errors.New("detection: inference failed")

// Detection represents one candidate target in a frame.
type Detection struct {
	ClassID    int     `json:"class_id"`   // Model class index
	Label      string  `json:"label"`      // Human-readable class name
	Confidence float64 `json:"confidence"` // Detection confidence (0-1)
	X          float64 `json:"x"`          // Top-left corner in pixels
	Y          float64 `json:"y"`
	W          float64 `json:"w"` // Width and height in pixels
	H          float64 `json:"h"`
}

// Center returns the center point of the detection in pixels
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box in square pixels
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector is the interface for detection backends.
// The backend is chosen once at startup; callers never branch on it.
type Detector interface {
	// Detect returns the candidates found in the frame, in the backend's
	// own order. Failures wrap ErrInference.
	Detect(frame camera.Frame) ([]Detection, error)

	// Close releases resources
	Close() error
}

// SelectFirst returns the first detection carrying the target label whose
// confidence is strictly above minConfidence, in the order the detector
// returned them. It never re-ranks. Nil means no qualifying target.
func SelectFirst(dets []Detection, label string, minConfidence float64) *Detection {
	for i := range dets {
		if dets[i].Label == label && dets[i].Confidence > minConfidence {
			d := dets[i]
			return &d
		}
	}
	return nil
}
