// eyeguide is the navigation aid for visually impaired users.
//
//	eyeguide camera    # on the camera unit: capture and serve MJPEG
//	eyeguide client    # on the user's device: voice commands and spoken guidance
//	eyeguide detector  # on the server: remote object detection
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-eyeguide/internal/config"
	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/pkg/debug"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "eyeguide: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	logLevel    string
	debug       bool
	debugFrames bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "eyeguide",
		Short:         "Spoken obstacle guidance from a wearable camera",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .toml or .json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults EYEGUIDE_LOG_LEVEL or info)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable verbose debug logging")
	root.PersistentFlags().BoolVar(&opts.debugFrames, "debug-frames", false, "Log every frame (very verbose)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(opts.configPath)
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		if opts.logLevel != "" {
			cfg.LogLevel = opts.logLevel
		}
		if opts.debug || opts.debugFrames {
			cfg.LogLevel = "debug"
		}
		opts.cfg = cfg

		debug.Enabled = opts.debug || opts.debugFrames
		debug.Frames = opts.debugFrames
		log.Init(cfg.LogLevel)
		return nil
	}

	root.AddCommand(
		newCameraCmd(opts),
		newClientCmd(opts),
		newDetectorCmd(opts),
	)
	return root
}

// validated checks the merged configuration once subcommand flags are applied.
func (o *rootOptions) validated() (config.Config, error) {
	if err := o.cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return o.cfg, nil
}
