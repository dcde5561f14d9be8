// Package config loads the rover configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-rover/pkg/actuation"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/control"
	"github.com/teslashibe/go-rover/pkg/input"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/telemetry"
	"github.com/teslashibe/go-rover/pkg/tracking"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
	"github.com/teslashibe/go-rover/pkg/web"
)

// Environment overrides.
const (
	EnvCameraIndex = "ROVER_CAMERA_INDEX"
	EnvLogLevel    = "ROVER_LOG_LEVEL"
	EnvMQTTBroker  = "ROVER_MQTT_BROKER"
	EnvWebPort     = "ROVER_WEB_PORT"
)

// Log configures the application log.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // "" logs to stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Config is the complete rover configuration.
type Config struct {
	Log         Log                  `yaml:"log"`
	CameraIndex int                  `yaml:"camera_index"`
	Camera      camera.Config        `yaml:"camera"`
	Detector    detection.YOLOConfig `yaml:"detector"`
	Perception  perception.Config    `yaml:"perception"`
	Tracking    tracking.Config      `yaml:"tracking"`
	Actuation   actuation.Config     `yaml:"actuation"`
	Input       input.Config         `yaml:"input"`
	Control     control.Config       `yaml:"control"`
	Telemetry   telemetry.Config     `yaml:"telemetry"`
	Web         web.Config           `yaml:"web"`
}

// Default returns the stock rover configuration.
func Default() Config {
	return Config{
		Log: Log{
			Level:      "info",
			File:       "log/app.log",
			MaxSizeMB:  10,
			MaxBackups: 1,
		},
		CameraIndex: 0,
		Camera:      camera.DefaultConfig(),
		Detector:    detection.DefaultYOLOConfig(),
		Perception:  perception.DefaultConfig(),
		Tracking:    tracking.DefaultConfig(),
		Actuation:   actuation.DefaultConfig(),
		Input:       input.DefaultConfig(),
		Control:     control.DefaultConfig(),
		Telemetry:   telemetry.DefaultConfig(),
		Web:         web.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies the ROVER_* overrides using getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvCameraIndex); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvCameraIndex, v, err)
		}
		c.CameraIndex = idx
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(EnvMQTTBroker); v != "" {
		c.Telemetry.MQTTBroker = v
	}
	if v := getenv(EnvWebPort); v != "" {
		c.Web.Port = v
	}
	return nil
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	var errs []error

	if c.CameraIndex < 0 {
		errs = append(errs, fmt.Errorf("camera_index: negative index %d", c.CameraIndex))
	}
	for _, msg := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", msg))
	}
	if c.Detector.ModelPath == "" {
		errs = append(errs, errors.New("detector: model_path is required"))
	}
	if c.Perception.MinConfidence < 0 || c.Perception.MinConfidence >= 1 {
		errs = append(errs, fmt.Errorf("perception: min_confidence %v outside [0, 1)", c.Perception.MinConfidence))
	}
	if c.Tracking.PanStep <= 0 || c.Tracking.TiltStep <= 0 {
		errs = append(errs, errors.New("tracking: steps must be positive"))
	}
	for _, err := range []error{c.Actuation.Validate(), c.Input.Validate(), c.Control.Validate()} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log: unknown level %q", c.Log.Level))
	}
	if c.Web.Port != "" {
		if p, err := strconv.Atoi(c.Web.Port); err != nil || p < 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("web: invalid port %q", c.Web.Port))
		}
	}

	return errors.Join(errs...)
}
