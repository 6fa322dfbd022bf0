package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const providerGoogle = "google"

// Google implements Provider with Google Cloud Text-to-Speech.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a Google TTS provider. Without an API key it falls back
// to Application Default Credentials.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	} else {
		ts, err := google.DefaultTokenSource(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("%w: %v", ErrNoAPIKey, err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create client: %w", err))
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
	}, nil
}

// apiEncoding maps our encodings to the API's AudioEncoding values.
// Raw PCM is requested as LINEAR16, which the API wraps in a WAV header.
func apiEncoding(enc Encoding) (string, Encoding) {
	switch enc {
	case EncodingOpus:
		return "OGG_OPUS", EncodingOpus
	case EncodingMP3:
		return "MP3", EncodingMP3
	default:
		return "LINEAR16", EncodingWAV
	}
}

// Synthesize converts text to audio, retrying rate-limit and server errors.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}
	start := time.Now()

	apiEnc, enc := apiEncoding(g.config.OutputFormat)
	audioCfg := &texttospeech.AudioConfig{
		AudioEncoding: apiEnc,
		SpeakingRate:  g.config.SpeakingRate,
	}
	if rate := SampleRateFromEncoding(g.config.OutputFormat); rate != 0 && enc == EncodingWAV {
		audioCfg.SampleRateHertz = int64(rate)
	}
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.LanguageCode,
			Name:         g.config.Voice,
		},
		AudioConfig: audioCfg,
	}

	var resp *texttospeech.SynthesizeSpeechResponse
	err := g.withRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.svc.Text.Synthesize(req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}
	latency := time.Since(start).Milliseconds()

	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"encoding", enc,
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   enc,
			SampleRate: SampleRateFromEncoding(enc),
			Channels:   1,
			BitDepth:   16,
		},
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health lists the voices for the configured language.
func (g *Google) Health(ctx context.Context) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		_, err := g.svc.Voices.List().LanguageCode(g.config.LanguageCode).Context(ctx).Do()
		return err
	})
}

// Close releases resources. The REST client holds none.
func (g *Google) Close() error {
	return nil
}

func (g *Google) withRetry(ctx context.Context, call func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		err := call(rctx)
		cancel()
		if err == nil {
			return nil
		}

		err = g.mapError(err)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() || attempt >= g.config.MaxRetries {
			return err
		}

		delay := g.config.RetryDelay * time.Duration(attempt+1)
		g.logger.Warn("retrying request", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (g *Google) mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return WrapError(providerGoogle, err)
	}
	apiErr := &APIError{
		StatusCode: gerr.Code,
		Message:    gerr.Message,
		Provider:   providerGoogle,
	}
	if len(gerr.Errors) > 0 {
		apiErr.Code = gerr.Errors[0].Reason
	}
	return apiErr
}

var _ Provider = (*Google)(nil)
