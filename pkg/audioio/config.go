// Package audioio captures microphone audio and plays PCM through the
// platform's command-line audio tools.
//
// Backends:
//   - ALSA (arecord/aplay) on Linux and the Raspberry Pi
//   - SoX (rec/play) on macOS and other desktops
//   - Mock for tests without hardware
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the best backend installed on this machine.
	BackendAuto Backend = "auto"
	// BackendALSA uses arecord and aplay from alsa-utils.
	BackendALSA Backend = "alsa"
	// BackendSoX uses rec and play from SoX.
	BackendSoX Backend = "sox"
	// BackendMock uses an in-memory implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture or playback rate in Hz.
	// Default: 16000, what speech recognition expects.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is 1 for mono, 2 for stereo.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is how much audio each chunk holds.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is passed to the tool as is, e.g. "plughw:1,0" for arecord.
	// Empty uses the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per channel in one buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes of PCM16.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
