package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const providerEspeak = "espeak"

// espeakBinaries are tried in order.
var espeakBinaries = []string{"espeak-ng", "espeak"}

// Espeak implements Provider with the espeak-ng synthesizer. It needs no
// network, so it is the last link of the client's chain.
type Espeak struct {
	config  *Config
	logger  *slog.Logger
	binary  string
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewEspeak creates an offline provider. A missing binary is reported by
// Health and Synthesize, not here, so the chain can still be built.
func NewEspeak(opts ...Option) *Espeak {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	e := &Espeak{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.espeak"),
		command: exec.CommandContext,
	}
	for _, b := range espeakBinaries {
		if _, err := exec.LookPath(b); err == nil {
			e.binary = b
			break
		}
	}
	return e
}

// voice maps a BCP 47 tag to an espeak voice ("pt-BR" to "pt-br").
func (e *Espeak) voice() string {
	if e.config.Voice != "" {
		return e.config.Voice
	}
	return strings.ToLower(e.config.LanguageCode)
}

// args builds the command line; 175 words per minute is espeak's normal speed.
func (e *Espeak) args(text string) []string {
	wpm := int(175 * e.config.SpeakingRate)
	if wpm <= 0 {
		wpm = 175
	}
	return []string{"-v", e.voice(), "-s", strconv.Itoa(wpm), "--stdout", text}
}

// Synthesize runs espeak and returns its WAV output.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	if e.binary == "" {
		return nil, WrapError(providerEspeak, ErrProviderUnavailable)
	}
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := e.command(ctx, e.binary, e.args(text)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, WrapError(providerEspeak, fmt.Errorf("%s: %w: %s", e.binary, err, strings.TrimSpace(stderr.String())))
	}
	latency := time.Since(start).Milliseconds()

	e.logger.Debug("synthesized audio", "chars", len(text), "bytes", stdout.Len(), "latency_ms", latency)

	return &AudioResult{
		Audio:     stdout.Bytes(),
		Format:    AudioFormat{Encoding: EncodingWAV, Channels: 1, BitDepth: 16},
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health reports whether an espeak binary was found.
func (e *Espeak) Health(ctx context.Context) error {
	if e.binary == "" {
		return WrapError(providerEspeak, fmt.Errorf("%w: none of %v installed", ErrProviderUnavailable, espeakBinaries))
	}
	return nil
}

func (e *Espeak) Close() error {
	return nil
}

var _ Provider = (*Espeak)(nil)
