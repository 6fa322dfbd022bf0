package main

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-eyeguide/internal/config"
	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/pkg/camera"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/stream"
)

// captureRestartDelay is the pause before relaunching a crashed capture process.
const captureRestartDelay = 2 * time.Second

func newCameraCmd(opts *rootOptions) *cobra.Command {
	var (
		addr   string
		preset string
	)

	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Capture MJPEG from the camera module and serve it over HTTP",
		Example: "  eyeguide camera\n" +
			"  eyeguide camera --addr :8080 --preset night",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				opts.cfg.Stream.Addr = addr
			}
			cfg, err := opts.validated()
			if err != nil {
				return err
			}
			camCfg, err := captureConfig(cfg.Camera, preset)
			if err != nil {
				return err
			}
			return runCamera(cmd, cfg, camCfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :5000)")
	cmd.Flags().StringVar(&preset, "preset", "", "Capture preset: "+strings.Join(camera.PresetNames(), "|"))
	return cmd
}

// captureConfig starts from a preset, if any, and lays the configured
// resolution on top.
func captureConfig(c config.CameraConfig, preset string) (camera.Config, error) {
	camCfg := camera.DefaultConfig()
	if preset != "" {
		p := camera.GetPreset(preset)
		if p == nil {
			return camera.Config{}, fmt.Errorf("unknown preset %q (want one of %s)", preset, strings.Join(camera.PresetNames(), ", "))
		}
		camCfg = *p
	} else {
		camCfg.Width, camCfg.Height, camCfg.Framerate = c.Width, c.Height, c.Framerate
	}
	camCfg.Binary = c.Command
	camCfg.ChunkSize = c.ChunkSize

	if errs := camCfg.Validate(); len(errs) > 0 {
		return camera.Config{}, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}
	return camCfg, nil
}

func runCamera(cmd *cobra.Command, cfg config.Config, camCfg camera.Config) error {
	logger := log.Component("camera")
	ctx := cmd.Context()

	latest := framebuf.NewLatest(framebuf.WithPollInterval(cfg.Stream.PollInterval))
	defer latest.Close()

	srv := stream.NewServer(cfg.Stream.Addr, latest, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	binary := camCfg.Binary
	if binary == "" {
		var err error
		binary, err = camera.Discover(exec.LookPath)
		if err != nil {
			// keep serving so /health reports why there is no picture
			logger.Error("no capture binary found", "error", err)
			srv.SetCapturing(false, "", err)
		}
	}

	if binary != "" {
		capture := camera.NewCapture(camCfg, binary, func(b []byte) { latest.Publish(b) }, logger)
		capture.OnState = srv.SetCapturing
		capture.RestartDelay = captureRestartDelay
		g.Go(func() error {
			return capture.Run(gctx)
		})
		logger.Info("camera started",
			"binary", binary,
			"addr", cfg.Stream.Addr,
			"resolution", fmt.Sprintf("%dx%d", camCfg.Width, camCfg.Height),
			"framerate", camCfg.Framerate,
		)
	}

	return g.Wait()
}
