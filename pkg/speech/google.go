package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	speechapi "google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-eyeguide/pkg/audioio"
)

// GoogleConfig configures the Cloud Speech-to-Text recognizer.
type GoogleConfig struct {
	// APIKey authenticates requests; empty means Application Default Credentials.
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Google recognizes speech with Cloud Speech-to-Text.
type Google struct {
	svc     *speechapi.Service
	timeout time.Duration
	logger  *slog.Logger
}

// NewGoogle creates a recognizer.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		ts, err := google.DefaultTokenSource(ctx, speechapi.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("speech: no credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	svc, err := speechapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech: create client: %w", err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{
		svc:     svc,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "speech.google"),
	}, nil
}

// Recognize returns the best transcript, or ErrUnintelligible if the
// service found no speech in the clip.
func (g *Google) Recognize(ctx context.Context, clip Clip, language string) (string, error) {
	if len(clip.Samples) == 0 {
		return "", ErrUnintelligible
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	req := &speechapi.RecognizeRequest{
		Config: &speechapi.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(clip.SampleRate),
			LanguageCode:    language,
		},
		Audio: &speechapi.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(clip.Samples)),
		},
	}
	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("speech: recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 && r.Alternatives[0].Transcript != "" {
			parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		}
	}
	if len(parts) == 0 {
		return "", ErrUnintelligible
	}

	text := strings.Join(parts, " ")
	g.logger.Debug("recognized", "text", text, "audio", clip.Duration(), "latency", time.Since(start))
	return text, nil
}

var _ Recognizer = (*Google)(nil)
