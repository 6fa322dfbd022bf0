package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/teslashibe/go-eyeguide/pkg/audioio"
	"github.com/teslashibe/go-eyeguide/pkg/tts"
)

func TestPlayerHelperProcess(t *testing.T) {
	if os.Getenv("EYEGUIDE_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(0)
}

type recorded struct {
	name string
	args []string
}

// fakeCommands makes every external player succeed and records its command line.
func fakeCommands(p *Player, installed ...string) *[]recorded {
	var calls []recorded
	p.lookPath = func(file string) (string, error) {
		for _, name := range installed {
			if name == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", exec.ErrNotFound
	}
	p.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, recorded{name, args})
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestPlayerHelperProcess", "--")
		cmd.Env = append(os.Environ(), "EYEGUIDE_HELPER_PROCESS=1")
		return cmd
	}
	return &calls
}

// makeWAV builds a 16-bit PCM WAV with an extra LIST chunk before the data.
func makeWAV(rate, channels int, samples []int16, dataSize uint32) []byte {
	var b []byte
	le32 := func(v uint32) { b = binary.LittleEndian.AppendUint32(b, v) }
	le16 := func(v uint16) { b = binary.LittleEndian.AppendUint16(b, v) }

	b = append(b, "RIFF"...)
	le32(0)
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	le32(16)
	le16(1)
	le16(uint16(channels))
	le32(uint32(rate))
	le32(uint32(rate * channels * 2))
	le16(uint16(channels * 2))
	le16(16)
	b = append(b, "LIST"...)
	le32(3)
	b = append(b, 'a', 'b', 'c', 0)
	b = append(b, "data"...)
	le32(dataSize)
	return append(b, audioio.SamplesToBytes(samples)...)
}

func TestParseWAV(t *testing.T) {
	samples := []int16{1, -2, 3, -4}

	t.Run("valid", func(t *testing.T) {
		w, err := ParseWAV(makeWAV(22050, 2, samples, 8))
		if err != nil {
			t.Fatal(err)
		}
		if w.SampleRate != 22050 || w.Channels != 2 || !reflect.DeepEqual(w.Samples, samples) {
			t.Errorf("got %+v", w)
		}
	})

	t.Run("streamed size", func(t *testing.T) {
		w, err := ParseWAV(makeWAV(22050, 1, samples, 0xFFFFFFFF))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(w.Samples, samples) {
			t.Errorf("got %v", w.Samples)
		}
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("OggS0000WAVEfmt ")},
		{"no data chunk", makeWAV(16000, 1, nil, 0)[:36]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseWAV(tc.data); !errors.Is(err, ErrInvalidWAV) {
				t.Errorf("got %v, want ErrInvalidWAV", err)
			}
		})
	}
}

func TestPlayer_PlayAudio(t *testing.T) {
	tests := []struct {
		name    string
		result  *tts.AudioResult
		samples int
	}{
		{
			name: "pcm at sink rate",
			result: &tts.AudioResult{
				Audio:  make([]byte, 640),
				Format: tts.AudioFormat{Encoding: tts.EncodingPCM16, SampleRate: 16000, Channels: 1},
			},
			samples: 320,
		},
		{
			name: "wav stereo upsampled",
			result: &tts.AudioResult{
				Audio:  makeWAV(8000, 2, make([]int16, 400), 800),
				Format: tts.AudioFormat{Encoding: tts.EncodingWAV},
			},
			samples: 400,
		},
		{
			name:    "empty",
			result:  &tts.AudioResult{Format: tts.AudioFormat{Encoding: tts.EncodingPCM16}},
			samples: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
			p := NewPlayer(sink, nil)

			var starts, ends int
			p.OnPlaybackStart = func() { starts++ }
			p.OnPlaybackEnd = func() { ends++ }

			if err := p.PlayAudio(context.Background(), tc.result); err != nil {
				t.Fatal(err)
			}
			if got := len(sink.Played()); got != tc.samples {
				t.Errorf("played %d samples, want %d", got, tc.samples)
			}
			if tc.samples > 0 && (starts != 1 || ends != 1 || sink.Flushes() != 1) {
				t.Errorf("starts=%d ends=%d flushes=%d", starts, ends, sink.Flushes())
			}
			if p.IsPlaying() {
				t.Error("still playing after return")
			}
		})
	}
}

func TestPlayer_PlayPCMChunks(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	p := NewPlayer(sink, nil)

	if err := p.PlayPCM(context.Background(), make([]int16, 4000), 16000, 1); err != nil {
		t.Fatal(err)
	}
	// 100ms at 16kHz per write
	if got := sink.Stats().ChunksWritten; got != 3 {
		t.Errorf("got %d chunks, want 3", got)
	}
}

func TestPlayer_NoSink(t *testing.T) {
	p := NewPlayer(nil, nil)
	err := p.PlayAudio(context.Background(), &tts.AudioResult{
		Audio:  make([]byte, 64),
		Format: tts.AudioFormat{Encoding: tts.EncodingPCM16},
	})
	if !errors.Is(err, ErrNoSink) {
		t.Errorf("got %v, want ErrNoSink", err)
	}
}

func TestPlayer_PlayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inicio.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("first installed player", func(t *testing.T) {
		p := NewPlayer(nil, nil)
		calls := fakeCommands(p, "ffplay", "play")

		if err := p.PlayFile(context.Background(), path); err != nil {
			t.Fatal(err)
		}
		want := []recorded{{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}}}
		if !reflect.DeepEqual(*calls, want) {
			t.Errorf("got %v, want %v", *calls, want)
		}
	})

	t.Run("none installed", func(t *testing.T) {
		p := NewPlayer(nil, nil)
		fakeCommands(p)
		if err := p.PlayFile(context.Background(), path); !errors.Is(err, ErrNoPlayer) {
			t.Errorf("got %v, want ErrNoPlayer", err)
		}
	})

	t.Run("wav goes to the sink", func(t *testing.T) {
		wav := filepath.Join(t.TempDir(), "standby.wav")
		if err := os.WriteFile(wav, makeWAV(16000, 1, make([]int16, 160), 320), 0o644); err != nil {
			t.Fatal(err)
		}
		sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
		p := NewPlayer(sink, nil)
		calls := fakeCommands(p, "mpg123")

		if err := p.PlayFile(context.Background(), wav); err != nil {
			t.Fatal(err)
		}
		if len(*calls) != 0 || len(sink.Played()) != 160 {
			t.Errorf("calls=%v played=%d", *calls, len(sink.Played()))
		}
	})
}

func TestPlayer_MP3UsesTempFile(t *testing.T) {
	p := NewPlayer(nil, nil)
	calls := fakeCommands(p, "mpg123")

	err := p.PlayAudio(context.Background(), &tts.AudioResult{
		Audio:  []byte("ID3-mp3"),
		Format: tts.AudioFormat{Encoding: tts.EncodingMP3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 1 || (*calls)[0].name != "mpg123" {
		t.Fatalf("got %v", *calls)
	}
	tmp := (*calls)[0].args[len((*calls)[0].args)-1]
	if filepath.Ext(tmp) != ".mp3" {
		t.Errorf("temp file %q should keep the extension", tmp)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("temp file should be removed after playback")
	}
}
