package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// lookPath is exec.LookPath; tests replace it.
var lookPath = exec.LookPath

// NewSource creates a microphone source with the given configuration.
// If cfg.Backend is BackendAuto, the best installed backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audio-source")

	backend, err := resolve(cfg.Backend, true)
	if err != nil {
		return nil, err
	}
	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	if backend == BackendMock {
		return NewMockSource(cfg, logger), nil
	}
	return newProcessSource(backend, cfg, logger), nil
}

// NewSink creates a speaker sink with the given configuration.
// If cfg.Backend is BackendAuto, the best installed backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audio-sink")

	backend, err := resolve(cfg.Backend, false)
	if err != nil {
		return nil, err
	}
	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	if backend == BackendMock {
		return NewMockSink(cfg, logger), nil
	}
	return newProcessSink(backend, cfg, logger), nil
}

// resolve maps BackendAuto to an installed backend and checks that an
// explicit backend's tool exists.
func resolve(b Backend, capture bool) (Backend, error) {
	tool := func(b Backend) string {
		cfg := DefaultConfig()
		if capture {
			name, _ := captureCommand(b, cfg)
			return name
		}
		name, _ := playbackCommand(b, cfg)
		return name
	}

	switch b {
	case BackendMock:
		return b, nil
	case BackendALSA, BackendSoX:
		if _, err := lookPath(tool(b)); err != nil {
			return "", fmt.Errorf("%s backend: %w", b, err)
		}
		return b, nil
	case BackendAuto, "":
		for _, cand := range AvailableBackends() {
			if cand == BackendMock {
				continue
			}
			if _, err := lookPath(tool(cand)); err == nil {
				return cand, nil
			}
		}
		return "", fmt.Errorf("no audio tools found (install alsa-utils or sox)")
	default:
		return "", fmt.Errorf("unsupported backend: %s", b)
	}
}

// AvailableBackends returns the backends worth trying on this platform,
// most preferred first.
func AvailableBackends() []Backend {
	switch runtime.GOOS {
	case "linux":
		return []Backend{BackendALSA, BackendSoX, BackendMock}
	default:
		return []Backend{BackendSoX, BackendMock}
	}
}
