package main

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-eyeguide/internal/config"
	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/pkg/audio"
	"github.com/teslashibe/go-eyeguide/pkg/audioio"
	"github.com/teslashibe/go-eyeguide/pkg/camera"
	"github.com/teslashibe/go-eyeguide/pkg/client"
	"github.com/teslashibe/go-eyeguide/pkg/cloud"
	"github.com/teslashibe/go-eyeguide/pkg/command"
	"github.com/teslashibe/go-eyeguide/pkg/detection"
	"github.com/teslashibe/go-eyeguide/pkg/feedback"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
	"github.com/teslashibe/go-eyeguide/pkg/navigator"
	"github.com/teslashibe/go-eyeguide/pkg/speech"
	"github.com/teslashibe/go-eyeguide/pkg/tts"
)

const overlayTitle = "EyeGuide"

func newClientCmd(opts *rootOptions) *cobra.Command {
	var (
		cameraURL string
		cloudURL  string
		language  string
		audioDir  string
		cloudMode bool
		overlay   bool
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run the voice-driven navigation aid",
		Example: "  eyeguide client --camera-url http://192.168.0.10:5000/video_feed\n" +
			"  eyeguide client --cloud --cloud-url http://detector:5000/detect --overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("camera-url") {
				opts.cfg.Client.CameraURL = cameraURL
			}
			if f.Changed("cloud-url") {
				opts.cfg.Client.CloudURL = cloudURL
			}
			if f.Changed("language") {
				opts.cfg.Speech.Language = language
			}
			if f.Changed("audio-dir") {
				opts.cfg.Client.AudioDir = audioDir
			}
			if f.Changed("cloud") {
				opts.cfg.Client.StartCloud = cloudMode
			}
			if f.Changed("overlay") {
				opts.cfg.Client.Overlay = overlay
			}
			cfg, err := opts.validated()
			if err != nil {
				return err
			}
			if cfg.Client.Overlay {
				// HighGUI windows must stay on one OS thread; the dispatch
				// loop runs on this goroutine.
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
			}
			return runClient(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cameraURL, "camera-url", "", "Camera feed URL (http:// MJPEG or ws://)")
	cmd.Flags().StringVar(&cloudURL, "cloud-url", "", "Remote detector URL")
	cmd.Flags().StringVar(&language, "language", "", "Recognition and speech language, e.g. pt-BR or en-US")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "Directory with the prompt recordings")
	cmd.Flags().BoolVar(&cloudMode, "cloud", false, "Start in cloud detection mode")
	cmd.Flags().BoolVar(&overlay, "overlay", false, "Show the camera feed with the current mode")
	return cmd
}

func runClient(ctx context.Context, cfg config.Config) error {
	logger := log.Component("client")
	phrases := navigation.ForLanguage(cfg.Speech.Language)

	mode := navigator.ModeLocal
	if cfg.Client.StartCloud {
		mode = navigator.ModeCloud
	}
	state := navigator.NewState(mode)
	frames := framebuf.NewRing(cfg.Client.BufferSize)

	audioCfg := audioio.DefaultConfig()
	audioCfg.Backend = audioio.Backend(cfg.Speech.AudioBackend)
	audioCfg.SampleRate = cfg.Speech.SampleRate
	audioCfg.Device = cfg.Speech.Device

	// Output: TTS chain into the player, serialized by the feedback queue.
	speaker, err := newSpeaker(ctx, cfg.Speech, logger)
	if err != nil {
		return err
	}
	defer speaker.Close()

	sink, err := audioio.NewSink(audioCfg, logger)
	if err != nil {
		logger.Warn("no audio sink, falling back to external players", "error", err)
	} else {
		defer sink.Close()
	}
	out := feedback.NewQueue(feedback.DefaultConfig(), speaker, audio.NewPlayer(sink, logger), phrases, logger)

	// Detection: local YOLO and the remote detector, switched by voice.
	dispatchOpts := []navigator.DispatcherOption{
		navigator.WithCloud(cloud.NewClient(cfg.Client.CloudURL, cfg.Client.CloudTimeout)),
		navigator.WithEstimator(navigation.Estimator{
			AverageHeightCM: cfg.Navigation.AverageHeightCM,
			FrameHeightPX:   cfg.Navigation.FrameHeightPX,
			StepLengthCM:    cfg.Navigation.StepLengthCM,
		}),
		navigator.WithMaxFrameAge(cfg.Client.MaxFrameAge),
		navigator.WithLogger(logger),
	}
	if yolo, err := detection.NewYOLO(yoloConfig(cfg.Detection)); err != nil {
		logger.Warn("local detector unavailable", "path", cfg.Detection.ModelPath, "error", err)
	} else {
		defer yolo.Close()
		dispatchOpts = append(dispatchOpts, navigator.WithLocal(yolo))
	}
	dispatcher := navigator.NewDispatcher(state, frames, out, phrases, dispatchOpts...)

	commands := command.NewChannel(command.Config{
		Cooldown:  cfg.Client.Cooldown,
		ExitDelay: cfg.Client.ExitDelay,
		AudioDir:  cfg.Client.AudioDir,
		QueueSize: command.DefaultConfig().QueueSize,
	}, state, phrases, out, logger)

	app := &client.App{
		State:      state,
		Frames:     frames,
		Commands:   commands,
		Dispatcher: dispatcher,
		Feedback:   out,
		Logger:     logger,
	}

	if src, err := camera.NewSource(cfg.Client.CameraURL, logger); err != nil {
		logger.Error("camera source", "url", cfg.Client.CameraURL, "error", err)
	} else {
		app.Source = src
	}

	// Input: microphone phrases recognized by Cloud Speech-to-Text.
	if mic, err := audioio.NewSource(audioCfg, logger); err != nil {
		logger.Warn("no microphone, voice commands disabled", "error", err)
	} else if err := mic.Start(ctx); err != nil {
		logger.Warn("microphone failed to start, voice commands disabled", "error", err)
	} else {
		defer mic.Close()
		app.Listener = speech.NewEnergyListener(mic, listenerConfig(cfg.Speech), logger)
	}
	if app.Listener != nil {
		rec, err := speech.NewGoogle(ctx, speech.GoogleConfig{APIKey: cfg.Speech.GoogleAPIKey, Logger: logger})
		if err != nil {
			logger.Warn("speech recognition unavailable, voice commands disabled", "error", err)
		} else {
			app.Recognizer = rec
		}
	}

	if cfg.Client.Overlay {
		app.Display = navigator.NewOverlay(overlayTitle)
	}

	logger.Info("client started",
		"camera", cfg.Client.CameraURL,
		"cloud", cfg.Client.CloudURL,
		"mode", state.Mode(),
		"language", cfg.Speech.Language,
	)
	return app.Run(ctx)
}

// newSpeaker chains Google Cloud TTS with the offline espeak voice.
func newSpeaker(ctx context.Context, c config.SpeechConfig, logger *slog.Logger) (*tts.Chain, error) {
	opts := []tts.Option{
		tts.WithLanguage(c.Language),
		tts.WithLogger(logger),
	}

	var providers []tts.Provider
	googleOpts := append([]tts.Option{tts.WithAPIKey(c.GoogleAPIKey), tts.WithVoice(c.Voice)}, opts...)
	if g, err := tts.NewGoogle(ctx, googleOpts...); err != nil {
		logger.Warn("google tts unavailable, using espeak only", "error", err)
	} else {
		providers = append(providers, g)
	}

	espeak := tts.NewEspeak(opts...)
	if err := espeak.Health(ctx); err != nil {
		logger.Warn("offline voice unavailable", "error", err)
	}
	providers = append(providers, espeak)

	chain, err := tts.NewChain(providers...)
	if err != nil {
		return nil, err
	}
	return chain.WithLogger(logger), nil
}

func listenerConfig(c config.SpeechConfig) speech.ListenerConfig {
	lc := speech.DefaultListenerConfig()
	lc.EnergyThreshold = c.EnergyThreshold
	lc.WaitTimeout = c.ListenTimeout
	lc.PhraseLimit = c.PhraseLimit
	return lc
}
