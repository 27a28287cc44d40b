package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"cogentcore.org/core/math32"
	"github.com/urfave/cli"
	"github.com/valerio/go-viz/viz"
	"github.com/valerio/go-viz/viz/adaptor"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/backend/headless"
	"github.com/valerio/go-viz/viz/backend/sdl2"
	"github.com/valerio/go-viz/viz/backend/terminal"
	"github.com/valerio/go-viz/viz/config"
	"github.com/valerio/go-viz/viz/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "viz"
	app.Description = "Renders layered scenes described by a YAML or TOML descriptor"
	app.Usage = "viz [options] <scene file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "scene",
			Usage: "Path to the scene descriptor (.yaml, .yml or .toml)",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "On-screen backend: terminal or sdl2",
			Value: "terminal",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to render for offscreen scenes",
			Value: 1,
		},
		cli.Float64Flag{
			Name:  "fps",
			Usage: "Maximum frame rate of on-screen surfaces",
			Value: timing.DefaultFPS,
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save offscreen frames as PNG every N frames (0 = only the last one)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save snapshots (default: temp directory)",
		},
		cli.BoolFlag{
			Name:  "watch",
			Usage: "Restart the surface when the descriptor changes",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
			Value: "info",
		},
	}
	app.Action = run

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running viz", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	scenePath := c.String("scene")
	if scenePath == "" {
		if c.NArg() > 0 {
			scenePath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no scene descriptor provided")
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	desc, err := config.Load(scenePath)
	if err != nil {
		return err
	}
	scene, err := desc.Normalize()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := strings.TrimSuffix(filepath.Base(scenePath), filepath.Ext(scenePath))
	if scene.IsOffscreen() {
		return runOffscreen(c, name, desc)
	}
	return runOnScreen(ctx, c, scenePath, name, desc)
}

func runOffscreen(c *cli.Context, name string, desc *config.Descriptor) error {
	frames := c.Int("frames")
	if frames <= 0 {
		return errors.New("offscreen scenes require --frames with a positive value")
	}

	snapshotDir, err := prepareSnapshotDir(c.String("snapshot-dir"))
	if err != nil {
		return err
	}
	snapshotConfig, err := headless.CreateSnapshotConfig(c.Int("snapshot-interval"), snapshotDir, name)
	if err != nil {
		return err
	}

	surface := viz.New(name, viz.Options{
		Registry:    adaptor.NewRegistry(),
		SnapshotDir: snapshotDir,
		Backends: func(*config.Scene) (backend.Backend, error) {
			return headless.New(frames, snapshotConfig), nil
		},
	})
	if err := surface.Configure(desc); err != nil {
		return err
	}
	if err := surface.Start(); err != nil {
		return err
	}
	defer func() {
		if err := surface.Stop(); err != nil {
			slog.Error("Failed to stop surface", "surface", name, "error", err)
		}
	}()

	placeholders := startPlaceholders(surface)
	defer stopPlaceholders(placeholders)
	surface.ResetCameras()

	for i := 0; i < frames; i++ {
		if surface.Mode() == viz.Manual {
			surface.Updating()
		} else {
			surface.RequestRender()
		}
	}

	path, err := surface.Offscreen().SavePNG(snapshotDir, name)
	if err != nil {
		return err
	}
	slog.Info("Offscreen rendering completed", "frames", surface.Draws(), "output", path)
	return nil
}

func runOnScreen(ctx context.Context, c *cli.Context, scenePath, name string, desc *config.Descriptor) error {
	newBackend, err := onScreenBackend(c.String("backend"))
	if err != nil {
		return err
	}
	snapshotDir, err := prepareSnapshotDir(c.String("snapshot-dir"))
	if err != nil {
		return err
	}

	ctx, quit := context.WithCancel(ctx)
	defer quit()

	changes := make(chan struct{}, 1)
	if c.Bool("watch") {
		err := config.Watch(ctx, scenePath, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return err
		}
	}

	registry := adaptor.NewRegistry()
	surface := viz.New(name, viz.Options{
		Registry:    registry,
		SnapshotDir: snapshotDir,
		OnQuit:      quit,
		Backends: func(*config.Scene) (backend.Backend, error) {
			return newBackend(), nil
		},
		Limiter: func(*config.Scene) timing.Limiter {
			return timing.NewAdaptiveLimiter(c.Float64("fps"))
		},
	})

	for {
		if err := surface.Configure(desc); err != nil {
			return err
		}
		if err := surface.Start(); err != nil {
			return err
		}
		placeholders := startPlaceholders(surface)
		surface.ResetCameras()
		surface.Updating()

		select {
		case <-ctx.Done():
			stopPlaceholders(placeholders)
			return surface.Stop()

		case <-changes:
			stopPlaceholders(placeholders)
			if err := surface.Stop(); err != nil {
				return err
			}
			reloaded, err := config.Load(scenePath)
			if err != nil {
				slog.Error("Failed to reload scene, keeping the previous one", "path", scenePath, "error", err)
				continue
			}
			slog.Info("Scene reloaded", "path", scenePath)
			desc = reloaded
		}
	}
}

func onScreenBackend(name string) (func() backend.Backend, error) {
	switch name {
	case "terminal":
		return func() backend.Backend { return terminal.New() }, nil
	case "sdl2":
		return func() backend.Backend { return sdl2.New() }, nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

func prepareSnapshotDir(dir string) (string, error) {
	if dir == "" {
		tempDir, err := os.MkdirTemp("", "viz-snapshots-*")
		if err != nil {
			return "", fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		return tempDir, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return dir, nil
}

// startPlaceholders starts a unit-sized adaptor for every adaptor the scene
// declares, so that cameras have content to frame.
func startPlaceholders(surface *viz.Orchestrator) []*adaptor.Func {
	unit := math32.B3(-0.5, -0.5, -0.5, 0.5, 0.5, 0.5)

	var started []*adaptor.Func
	for _, id := range surface.Registry().IDs() {
		entry, _ := surface.Registry().Lookup(id)
		if entry.Surface != surface.ID() {
			continue
		}
		a := adaptor.NewFunc(id, nil).WithBounds(unit)
		if err := a.Start(surface, surface.Registry()); err != nil {
			slog.Warn("Failed to start adaptor", "adaptor", id, "error", err)
			continue
		}
		started = append(started, a)
	}
	return started
}

func stopPlaceholders(adaptors []*adaptor.Func) {
	for _, a := range adaptors {
		a.Stop()
	}
}
