// Rover - RC vehicle driven from a gamepad, with optional person tracking
// on the pan/tilt camera mount.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/rover"
)

func main() {
	cfg, opts := parseFlags()

	if cfg.Log.File != "" {
		log.InitFile(cfg.Log.Level, log.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	} else {
		log.Init(cfg.Log.Level)
	}
	defer log.Close()

	if err := run(cfg, opts); err != nil {
		log.Error("rover stopped", "error", err)
		log.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, opts rover.Options) error {
	app, err := rover.New(cfg, opts, rover.Hardware{})
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	defer app.Shutdown()

	if err := app.Init(); err != nil {
		return fmt.Errorf("initialization: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx)
}

// parseFlags loads the configuration and layers command line flags over it.
func parseFlags() (config.Config, rover.Options) {
	configPath := flag.String("config", "", "YAML configuration file")
	cameraIndex := flag.Int("camera", -1, "Camera index (overrides config and ROVER_CAMERA_INDEX)")
	cameraPreset := flag.String("camera-preset", "", "Camera preset: low, default, hd")
	tracking := flag.Bool("tracking", true, "Run the perception worker and pan/tilt tracking")
	webPort := flag.String("web-port", "", "Dashboard port, \"off\" to disable")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTracking := flag.Bool("debug-tracking", false, "Log every perception and tracking step")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *cameraIndex >= 0 {
		cfg.CameraIndex = *cameraIndex
	}
	if *cameraPreset != "" {
		preset := camera.GetPreset(*cameraPreset)
		if preset == nil {
			fmt.Fprintf(os.Stderr, "Error: unknown camera preset %q\n", *cameraPreset)
			os.Exit(1)
		}
		cfg.Camera = *preset
	}
	switch *webPort {
	case "":
	case "off":
		cfg.Web.Port = ""
	default:
		cfg.Web.Port = *webPort
	}
	if *debug || *debugTracking {
		cfg.Log.Level = "debug"
	}

	return cfg, rover.Options{
		Tracking:      *tracking,
		Debug:         *debug,
		DebugTracking: *debugTracking,
	}
}
