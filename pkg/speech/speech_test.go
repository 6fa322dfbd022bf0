package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/audioio"
)

func chunk(level int16) audioio.AudioChunk {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = level
	}
	return audioio.AudioChunk{Samples: samples, SampleRate: 16000, Channels: 1}
}

func script(pattern string) []audioio.AudioChunk {
	var chunks []audioio.AudioChunk
	for _, c := range pattern {
		if c == '#' {
			chunks = append(chunks, chunk(10000))
		} else {
			chunks = append(chunks, chunk(0))
		}
	}
	return chunks
}

func testListenerConfig() ListenerConfig {
	return ListenerConfig{
		EnergyThreshold: 0.005,
		WaitTimeout:     time.Second,
		PhraseLimit:     2 * time.Second,
		Pause:           300 * time.Millisecond,
		PreRoll:         200 * time.Millisecond,
	}
}

func TestEnergyListener(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		samples int
		err     error
	}{
		// two chunks of pre-roll, five loud, three of trailing silence
		{"phrase with pause", "...#####....", 16000, nil},
		{"phrase limit", strings.Repeat("#", 25), 32000, nil},
		{"nobody speaks", strings.Repeat(".", 12), 0, ErrWaitTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := audioio.NewMockSource(audioio.DefaultConfig(), nil,
				audioio.WithScript(script(tc.pattern)...), audioio.WithoutPacing())
			if err := src.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			l := NewEnergyListener(src, testListenerConfig(), nil)

			clip, err := l.Listen(context.Background())
			if !errors.Is(err, tc.err) {
				t.Fatalf("got error %v, want %v", err, tc.err)
			}
			if len(clip.Samples) != tc.samples {
				t.Errorf("got %d samples, want %d", len(clip.Samples), tc.samples)
			}
			if tc.err == nil && clip.SampleRate != 16000 {
				t.Errorf("sample rate %d", clip.SampleRate)
			}
		})
	}
}

func TestEnergyListener_StoppedSource(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithoutPacing())
	l := NewEnergyListener(src, testListenerConfig(), nil)

	if _, err := l.Listen(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestClipDuration(t *testing.T) {
	c := Clip{Samples: make([]int16, 8000), SampleRate: 16000}
	if c.Duration() != 500*time.Millisecond {
		t.Errorf("got %v", c.Duration())
	}
	if (Clip{}).Duration() != 0 {
		t.Error("empty clip should have zero duration")
	}
}

type recognizeRequest struct {
	Config struct {
		Encoding        string `json:"encoding"`
		SampleRateHertz int64  `json:"sampleRateHertz"`
		LanguageCode    string `json:"languageCode"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

func TestGoogle_Recognize(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		err  error
	}{
		{
			name: "transcript",
			body: `{"results":[{"alternatives":[{"transcript":" modo nuvem ","confidence":0.93}]}]}`,
			want: "modo nuvem",
		},
		{
			name: "several results",
			body: `{"results":[{"alternatives":[{"transcript":"o que"}]},{"alternatives":[{"transcript":"tem na frente"}]}]}`,
			want: "o que tem na frente",
		},
		{
			name: "no speech",
			body: `{}`,
			err:  ErrUnintelligible,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got recognizeRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "speech:recognize") {
					http.NotFound(w, r)
					return
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			g, err := NewGoogle(context.Background(), GoogleConfig{APIKey: "k", Endpoint: srv.URL + "/"})
			if err != nil {
				t.Fatal(err)
			}

			clip := Clip{Samples: []int16{1, 2, 3, 4}, SampleRate: 16000}
			text, err := g.Recognize(context.Background(), clip, "pt-BR")
			if !errors.Is(err, tc.err) {
				t.Fatalf("got error %v, want %v", err, tc.err)
			}
			if text != tc.want {
				t.Errorf("got %q, want %q", text, tc.want)
			}

			if got.Config.Encoding != "LINEAR16" || got.Config.SampleRateHertz != 16000 || got.Config.LanguageCode != "pt-BR" {
				t.Errorf("config: %+v", got.Config)
			}
			audio, _ := base64.StdEncoding.DecodeString(got.Audio.Content)
			if len(audio) != 8 {
				t.Errorf("audio: %d bytes", len(audio))
			}
		})
	}
}

func TestGoogle_EmptyClip(t *testing.T) {
	g, err := NewGoogle(context.Background(), GoogleConfig{APIKey: "k", Endpoint: "http://127.0.0.1:1/"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Recognize(context.Background(), Clip{SampleRate: 16000}, "pt-BR"); !errors.Is(err, ErrUnintelligible) {
		t.Errorf("got %v", err)
	}
}

func TestMockRecognizer(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockRecognizer(MockResult{Text: "ativar"}, MockResult{Err: boom})
	ctx := context.Background()

	if text, err := m.Recognize(ctx, Clip{}, "pt-BR"); text != "ativar" || err != nil {
		t.Errorf("first: %q %v", text, err)
	}
	if _, err := m.Recognize(ctx, Clip{}, "pt-BR"); !errors.Is(err, boom) {
		t.Errorf("second: %v", err)
	}
	if _, err := m.Recognize(ctx, Clip{}, "en-US"); !errors.Is(err, ErrUnintelligible) {
		t.Errorf("exhausted: %v", err)
	}
	if m.Calls() != 3 || m.Languages()[2] != "en-US" {
		t.Errorf("calls=%d languages=%v", m.Calls(), m.Languages())
	}
}
