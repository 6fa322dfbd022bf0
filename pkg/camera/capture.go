package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/internal/metrics"
	"github.com/teslashibe/go-eyeguide/pkg/debug"
	"github.com/teslashibe/go-eyeguide/pkg/mjpeg"
)

// ErrNoCaptureBinary is returned when none of the known capture programs is installed.
var ErrNoCaptureBinary = errors.New("camera: no capture binary found (rpicam-vid, libcamera-vid, raspivid)")

// Binaries lists the supported capture programs in order of preference.
var Binaries = []string{"rpicam-vid", "libcamera-vid", "raspivid"}

// Discover returns the first capture binary found by lookPath.
func Discover(lookPath func(string) (string, error)) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range Binaries {
		if _, err := lookPath(name); err == nil {
			return name, nil
		}
	}
	return "", ErrNoCaptureBinary
}

// Args builds the argument list that makes binary write MJPEG to stdout
// forever. raspivid uses its own flag names.
func Args(binary string, cfg Config) []string {
	w := strconv.Itoa(cfg.Width)
	h := strconv.Itoa(cfg.Height)
	fps := strconv.Itoa(cfg.Framerate)

	if binary == "raspivid" {
		return []string{"-t", "0", "-w", w, "-h", h, "-fps", fps, "-cd", "MJPEG", "-o", "-"}
	}

	args := []string{
		"-t", "0",
		"--inline",
		"--width", w,
		"--height", h,
		"--framerate", fps,
		"--codec", "mjpeg",
	}
	if cfg.ExposureMode != "" && cfg.ExposureMode != "normal" {
		args = append(args, "--exposure", cfg.ExposureMode)
	}
	if cfg.ExposureValue != 0 {
		args = append(args, "--ev", strconv.FormatFloat(cfg.ExposureValue, 'f', -1, 64))
	}
	if cfg.Brightness != 0 {
		args = append(args, "--brightness", strconv.FormatFloat(cfg.Brightness, 'f', -1, 64))
	}
	if cfg.AfMode != "" {
		args = append(args, "--autofocus-mode", cfg.AfMode)
	}
	return append(args, "-o", "-")
}

// StateFunc is told when the capture process starts and stops.
type StateFunc func(capturing bool, binary string, err error)

// Capture runs the capture process and publishes each demuxed frame.
type Capture struct {
	cfg     Config
	binary  string
	publish func([]byte)
	logger  *slog.Logger

	// OnState, if set, is called on process start and exit.
	OnState StateFunc

	// RestartDelay is the pause before relaunching a process that exited.
	// Zero disables restarts.
	RestartDelay time.Duration

	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewCapture prepares a capture of cfg using binary, sending frames to publish.
func NewCapture(cfg Config, binary string, publish func([]byte), logger *slog.Logger) *Capture {
	return &Capture{
		cfg:     cfg,
		binary:  binary,
		publish: publish,
		logger:  log.Or(logger, "capture"),
		command: exec.CommandContext,
	}
}

// Run starts the capture process and demuxes its stdout until ctx is
// cancelled. With RestartDelay set, an exited process is relaunched.
func (c *Capture) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if c.RestartDelay <= 0 {
			return err
		}
		c.logger.Warn("capture process exited, restarting", "error", err, "delay", c.RestartDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.RestartDelay):
		}
	}
}

func (c *Capture) runOnce(ctx context.Context) error {
	args := Args(c.binary, c.cfg)
	cmd := c.command(ctx, c.binary, args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		c.notify(false, err)
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	c.logger.Info("capture started", "binary", c.binary, "args", args, "pid", cmd.Process.Pid)
	c.notify(true, nil)

	pumpErr := c.Pump(ctx, stdout)
	waitErr := cmd.Wait()

	err = pumpErr
	if err == nil {
		err = waitErr
	}
	if err == nil {
		err = io.EOF
	}
	c.notify(false, err)
	c.logger.Info("capture stopped", "binary", c.binary, "error", err)
	return err
}

// Pump demuxes r and publishes every complete frame. It returns nil when r ends.
func (c *Capture) Pump(ctx context.Context, r io.Reader) error {
	d := mjpeg.NewDemuxer(r,
		mjpeg.WithChunkSize(c.cfg.ChunkSize),
		mjpeg.WithDiscardFunc(func(n int) { metrics.BytesDiscarded.Add(float64(n)) }),
	)

	return d.Run(ctx, func(frame []byte) {
		c.publish(frame)
		metrics.FramesDemuxed.Inc()
		debug.FrameLog("frame demuxed", "bytes", len(frame), "frames", d.Stats().Frames)
	})
}

func (c *Capture) notify(capturing bool, err error) {
	if c.OnState != nil {
		c.OnState(capturing, c.binary, err)
	}
}
