// Package audio plays spoken feedback and prompt files.
//
// Synthesized speech is decoded to PCM and written to an audioio.Sink.
// Prompt files in formats we cannot decode are handed to an external player.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-eyeguide/pkg/audioio"
	"github.com/teslashibe/go-eyeguide/pkg/tts"
)

var (
	// ErrNoSink is returned when PCM playback is requested without a speaker.
	ErrNoSink = errors.New("audio: no output sink")

	// ErrNoPlayer is returned when no external file player is installed.
	ErrNoPlayer = errors.New("audio: no file player installed")

	// ErrUnsupported is returned for audio the player cannot handle.
	ErrUnsupported = errors.New("audio: unsupported format")
)

// chunkDuration is how much audio goes into each sink write, in milliseconds.
const chunkDuration = 100

// filePlayer is an external command that plays a file given as its last argument.
type filePlayer struct {
	name string
	args []string
}

// filePlayers are tried in order.
var filePlayers = []filePlayer{
	{"mpg123", []string{"-q"}},
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{"afplay", nil},
	{"play", []string{"-q"}},
}

// Player plays one piece of audio at a time.
type Player struct {
	sink   audioio.Sink
	logger *slog.Logger

	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
	lookPath func(file string) (string, error)

	mu      sync.Mutex
	playing atomic.Bool

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()
}

// NewPlayer creates a player writing PCM to sink. A nil sink is allowed;
// only PlayFile with an external player works then.
func NewPlayer(sink audioio.Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		sink:     sink,
		logger:   logger.With("component", "audio.player"),
		command:  exec.CommandContext,
		lookPath: exec.LookPath,
	}
}

// IsPlaying reports whether audio is being played.
func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}

func (p *Player) begin() {
	p.playing.Store(true)
	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
}

func (p *Player) end() {
	p.playing.Store(false)
	if p.OnPlaybackEnd != nil {
		p.OnPlaybackEnd()
	}
}

// PlayAudio plays a synthesis result and returns when it has finished.
func (p *Player) PlayAudio(ctx context.Context, res *tts.AudioResult) error {
	if res == nil || len(res.Audio) == 0 {
		return nil
	}

	switch enc := res.Format.Encoding; {
	case tts.IsRawPCM(enc):
		rate := res.Format.SampleRate
		if rate == 0 {
			rate = tts.SampleRateFromEncoding(enc)
		}
		channels := max(res.Format.Channels, 1)
		return p.PlayPCM(ctx, audioio.BytesToSamples(res.Audio), rate, channels)

	case enc == tts.EncodingWAV:
		w, err := ParseWAV(res.Audio)
		if err != nil {
			return err
		}
		return p.PlayPCM(ctx, w.Samples, w.SampleRate, w.Channels)

	case enc == tts.EncodingOpus:
		samples, err := DecodeOpus(res.Audio)
		if err != nil {
			return err
		}
		return p.PlayPCM(ctx, samples, opusRate, 1)

	case enc == tts.EncodingMP3:
		return p.playBytes(ctx, res.Audio, ".mp3")

	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, enc)
	}
}

// PlayPCM plays interleaved 16-bit samples, converting them to the sink's
// rate and channel count.
func (p *Player) PlayPCM(ctx context.Context, samples []int16, rate, channels int) error {
	if p.sink == nil {
		return ErrNoSink
	}
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := p.sink.Config()
	if channels > 1 {
		samples = audioio.Downmix(samples, channels)
	}
	samples = audioio.Resample(samples, rate, cfg.SampleRate)
	if cfg.Channels > 1 {
		samples = audioio.Upmix(samples, cfg.Channels)
	}

	if err := p.sink.Start(ctx); err != nil {
		return fmt.Errorf("start sink: %w", err)
	}

	p.begin()
	defer p.end()

	step := cfg.SampleRate * cfg.Channels * chunkDuration / 1000
	if step <= 0 {
		step = len(samples)
	}
	for off := 0; off < len(samples); off += step {
		if err := ctx.Err(); err != nil {
			p.sink.Clear()
			return err
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[off:min(off+step, len(samples))],
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}
		if err := p.sink.Write(ctx, chunk); err != nil {
			p.sink.Clear()
			return fmt.Errorf("write sink: %w", err)
		}
	}

	if err := p.sink.Flush(ctx); err != nil {
		return fmt.Errorf("flush sink: %w", err)
	}
	p.logger.Debug("played pcm", "samples", len(samples), "rate", cfg.SampleRate)
	return nil
}

// PlayFile plays an audio file. Opus and WAV files go through the sink;
// anything else is handed to the first installed external player.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus", ".ogg":
		if p.sink != nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			samples, err := DecodeOpus(data)
			if err != nil {
				return err
			}
			return p.PlayPCM(ctx, samples, opusRate, 1)
		}
	case ".wav":
		if p.sink != nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			w, err := ParseWAV(data)
			if err != nil {
				return err
			}
			return p.PlayPCM(ctx, w.Samples, w.SampleRate, w.Channels)
		}
	}
	return p.runExternal(ctx, path)
}

// playBytes writes encoded audio to a temporary file and plays it.
func (p *Player) playBytes(ctx context.Context, data []byte, ext string) error {
	f, err := os.CreateTemp("", "eyeguide-*"+ext)
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return p.runExternal(ctx, f.Name())
}

func (p *Player) runExternal(ctx context.Context, path string) error {
	fp, err := p.findPlayer()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.begin()
	defer p.end()

	args := append(append([]string(nil), fp.args...), path)
	out, err := p.command(ctx, fp.name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", fp.name, filepath.Base(path), err, strings.TrimSpace(string(out)))
	}
	p.logger.Debug("played file", "path", path, "player", fp.name)
	return nil
}

func (p *Player) findPlayer() (filePlayer, error) {
	for _, fp := range filePlayers {
		if _, err := p.lookPath(fp.name); err == nil {
			return fp, nil
		}
	}
	return filePlayer{}, ErrNoPlayer
}
