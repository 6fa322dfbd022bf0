package tts

import (
	"log/slog"
	"time"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// APIKey authenticates Google requests. When empty, Application
	// Default Credentials are used.
	APIKey string
	// Endpoint overrides the API base URL.
	Endpoint string

	// LanguageCode is a BCP 47 tag such as "pt-BR".
	LanguageCode string
	// Voice is a provider voice name; empty picks the language default.
	Voice string
	// SpeakingRate is 1.0 for normal speed.
	SpeakingRate float64

	OutputFormat Encoding

	Timeout time.Duration

	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEndpoint overrides the default API endpoint.
func WithEndpoint(url string) Option {
	return func(c *Config) {
		c.Endpoint = url
	}
}

// WithLanguage sets the spoken language.
func WithLanguage(code string) Option {
	return func(c *Config) {
		c.LanguageCode = code
	}
}

// WithVoice sets the voice name.
func WithVoice(name string) Option {
	return func(c *Config) {
		c.Voice = name
	}
}

// WithSpeakingRate sets the speed multiplier.
func WithSpeakingRate(rate float64) Option {
	return func(c *Config) {
		c.SpeakingRate = rate
	}
}

// WithOutputFormat sets the audio output format.
func WithOutputFormat(format Encoding) Option {
	return func(c *Config) {
		c.OutputFormat = format
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		LanguageCode: "pt-BR",
		SpeakingRate: 1.0,
		OutputFormat: EncodingOpus,
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryDelay:   200 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
