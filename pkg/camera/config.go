// Package camera provides the frame source for go-rover: a USB camera opened
// through OpenCV, the Frame type shared by perception and the dashboard, and
// a scripted mock for tests.
package camera

import (
	"fmt"
	"strings"
)

// Config holds the capture parameters of a USB camera.
type Config struct {
	Width     int    `yaml:"width" json:"width"`         // Frame width in pixels
	Height    int    `yaml:"height" json:"height"`       // Frame height in pixels
	Framerate int    `yaml:"framerate" json:"framerate"` // Requested FPS
	Quality   int    `yaml:"quality" json:"quality"`     // JPEG quality 1-100 for the dashboard
	Device    string `yaml:"device" json:"device"`       // Optional device path, overrides the index
}

// Capture limits accepted by Validate.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxFramerate = 120
)

// Preset names for common configurations
const (
	PresetLow     = "low"
	PresetDefault = "default"
	PresetHD      = "hd"
)

// DefaultConfig returns the 320x240 configuration the tracker dead-band is
// tuned for.
func DefaultConfig() Config {
	return Config{
		Width:     320,
		Height:    240,
		Framerate: 30,
		Quality:   70,
	}
}

// LowConfig trades resolution for detector throughput on small boards.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 160
	cfg.Height = 120
	cfg.Framerate = 15
	return cfg
}

// HDConfig returns 640x480. Dead-bands should be scaled up with it.
func HDConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Quality = 80
	return cfg
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	var cfg Config
	switch strings.ToLower(name) {
	case PresetLow:
		cfg = LowConfig()
	case PresetDefault:
		cfg = DefaultConfig()
	case PresetHD:
		cfg = HDConfig()
	default:
		return nil
	}
	return &cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
