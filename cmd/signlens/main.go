// signlens - webcam sign language interpreter
// Records frames from the local camera and asks a multimodal model what was signed
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-signlens/internal/app"
	"github.com/teslashibe/go-signlens/internal/config"
	"github.com/teslashibe/go-signlens/internal/log"
	"github.com/teslashibe/go-signlens/pkg/camera"
	"github.com/teslashibe/go-signlens/pkg/camera/webcam"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.String("port", "", "HTTP port (overrides PORT env var)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	fake := flag.Bool("fake-camera", false, "Use a synthetic test pattern instead of the webcam")
	provider := flag.String("provider", "", "Interpretation backend: gemini, openai")
	preset := flag.String("preset", "", fmt.Sprintf("Camera preset: %v", camera.PresetNames()))
	flag.Parse()

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *port != "" {
			c.Server.Port = *port
		}
		if *provider != "" {
			c.Provider = *provider
		}
		if *debug {
			c.Log.Level = "debug"
		}
		if p := camera.GetPreset(*preset); p != nil {
			p.DeviceID = c.Camera.DeviceID
			c.Camera = *p
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n%v\n", err)
		os.Exit(1)
	}

	logger := log.Init(cfg.Log.Level, cfg.Log.Format)
	if *preset != "" && camera.GetPreset(*preset) == nil {
		logger.Warn("unknown camera preset, using configured camera", "preset", *preset)
	}

	opener := webcam.Open
	if *fake {
		opener = camera.PatternOpener
		logger.Info("using synthetic camera")
	}

	a, err := app.New(cfg, opener, logger)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("signlens starting", "provider", cfg.Provider, "port", cfg.Server.Port, "interval", cfg.Sampler.Interval)
	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}
}
