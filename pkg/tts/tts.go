// Package tts turns navigation messages into speech.
//
// Two backends implement Provider: Google Cloud Text-to-Speech for natural
// voices when the network is up, and espeak-ng as an offline fallback.
// Chain tries them in order, so callers never need to know which one spoke.
//
// Example usage:
//
//	google, _ := tts.NewGoogle(ctx, tts.WithAPIKey(os.Getenv("GOOGLE_API_KEY")))
//	provider, _ := tts.NewChain(google, tts.NewEspeak())
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Caminho livre.")
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete clip.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the clip in Format.Encoding.
	Audio []byte

	Format AudioFormat

	// Duration is the estimated playback duration, when known.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis round trip in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// Raw little-endian PCM16, mono
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"

	// EncodingWAV is PCM16 in a RIFF container (Google LINEAR16, espeak).
	EncodingWAV Encoding = "wav"
	// EncodingOpus is Opus in an Ogg container, always decoded at 48kHz.
	EncodingOpus Encoding = "ogg_opus"
	EncodingMP3  Encoding = "mp3"
)

// SampleRateFromEncoding returns the sample rate implied by an encoding,
// or 0 when the container carries its own.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingOpus:
		return 48000
	default:
		return 0
	}
}

// IsRawPCM reports whether enc is headerless PCM16.
func IsRawPCM(enc Encoding) bool {
	return SampleRateFromEncoding(enc) != 0 && enc != EncodingOpus
}
