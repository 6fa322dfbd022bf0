package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Caminho livre.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.Format.SampleRate != 16000 {
			t.Errorf("expected 16000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		mock.Health(ctx)
		if got := mock.Texts(); len(got) != 1 || got[0] != "Caminho livre." {
			t.Errorf("texts: got %q", got)
		}
		if mock.CallCount("Health") != 1 {
			t.Errorf("expected 1 Health call, got %d", mock.CallCount("Health"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 50*time.Millisecond)

	start := time.Now()
	if _, err := mock.Synthesize(context.Background(), "oi"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected at least 50ms latency, got %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := mock.Synthesize(ctx, "oi"); err == nil {
		t.Error("expected context deadline error")
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	if cfg.LanguageCode != "pt-BR" || cfg.OutputFormat != tts.EncodingOpus {
		t.Errorf("defaults: %+v", cfg)
	}
	cfg.Apply(
		tts.WithLanguage("en-US"),
		tts.WithVoice("en-US-Standard-C"),
		tts.WithTimeout(5*time.Second),
		tts.WithOutputFormat(tts.EncodingWAV),
		tts.WithRetry(0, 0),
	)
	if cfg.LanguageCode != "en-US" || cfg.Voice != "en-US-Standard-C" {
		t.Errorf("voice: %s %s", cfg.LanguageCode, cfg.Voice)
	}
	if cfg.Timeout != 5*time.Second || cfg.OutputFormat != tts.EncodingWAV || cfg.MaxRetries != 0 {
		t.Errorf("got %+v", cfg)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		unauth    bool
	}{
		{429, true, false},
		{500, true, false},
		{503, true, false},
		{400, false, false},
		{401, false, true},
		{403, false, true},
	}
	for _, tc := range tests {
		err := &tts.APIError{StatusCode: tc.code}
		if err.IsRetryable() != tc.retryable {
			t.Errorf("%d: retryable %v", tc.code, err.IsRetryable())
		}
		if err.IsUnauthorized() != tc.unauth {
			t.Errorf("%d: unauthorized %v", tc.code, err.IsUnauthorized())
		}
	}

	err := &tts.APIError{StatusCode: 400, Message: "bad request", Code: "badRequest", Provider: "google"}
	if err.Error() != "tts [google]: API error 400 (badRequest): bad request" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := []struct {
		encoding tts.Encoding
		rate     int
		raw      bool
	}{
		{tts.EncodingPCM16, 16000, true},
		{tts.EncodingPCM22, 22050, true},
		{tts.EncodingPCM24, 24000, true},
		{tts.EncodingOpus, 48000, false},
		{tts.EncodingWAV, 0, false},
		{tts.EncodingMP3, 0, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.encoding), func(t *testing.T) {
			if got := tts.SampleRateFromEncoding(tc.encoding); got != tc.rate {
				t.Errorf("rate: got %d, want %d", got, tc.rate)
			}
			if got := tts.IsRawPCM(tc.encoding); got != tc.raw {
				t.Errorf("raw: got %v, want %v", got, tc.raw)
			}
		})
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a provider", func(t *testing.T) {
		if _, err := tts.NewChain(nil); err != tts.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("first provider wins", func(t *testing.T) {
		mock1, mock2 := tts.NewMock(), tts.NewMock()
		chain, _ := tts.NewChain(mock1, mock2)
		if _, err := chain.Synthesize(ctx, "oi"); err != nil {
			t.Fatal(err)
		}
		if mock1.CallCount("Synthesize") != 1 || mock2.CallCount("Synthesize") != 0 {
			t.Error("only the first provider should be called")
		}
	})

	t.Run("falls back on failure", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.WithError(errors.New("offline")), tts.NewMock())
		if res, err := chain.Synthesize(ctx, "oi"); err != nil || res == nil {
			t.Fatalf("got %v, %v", res, err)
		}
	})

	t.Run("all fail", func(t *testing.T) {
		first := errors.New("fail 1")
		chain, _ := tts.NewChain(tts.WithError(first), tts.WithError(errors.New("fail 2")))
		_, err := chain.Synthesize(ctx, "oi")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) || len(chainErr.Errors) != 2 {
			t.Fatalf("got %v", err)
		}
		if !errors.Is(err, first) {
			t.Error("every provider error should be reachable")
		}
	})

	t.Run("healthy if any provider is", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.WithError(errors.New("down")), tts.NewMock())
		if err := chain.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("google", inner)

	if err.Error() != "tts [google]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("expected the inner error to be reachable")
	}
	if tts.WrapError("google", nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

func TestGoogle_Synthesize(t *testing.T) {
	var got synthesizeRequest
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "text:synthesize") {
			http.NotFound(w, r)
			return
		}
		key = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("OggS-audio")),
		})
	}))
	defer srv.Close()

	g, err := tts.NewGoogle(context.Background(),
		tts.WithAPIKey("test-key"),
		tts.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := g.Synthesize(context.Background(), "Caminho livre.")
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Audio) != "OggS-audio" {
		t.Errorf("audio: got %q", res.Audio)
	}
	if res.Format.Encoding != tts.EncodingOpus || res.Format.SampleRate != 48000 {
		t.Errorf("format: %+v", res.Format)
	}
	if got.Input.Text != "Caminho livre." || got.Voice.LanguageCode != "pt-BR" || got.AudioConfig.AudioEncoding != "OGG_OPUS" {
		t.Errorf("request: %+v", got)
	}
	if key != "test-key" {
		t.Errorf("api key: got %q", key)
	}
}

func TestGoogle_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"try later"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"audioContent": base64.StdEncoding.EncodeToString([]byte("x"))})
	}))
	defer srv.Close()

	g, err := tts.NewGoogle(context.Background(),
		tts.WithAPIKey("k"), tts.WithEndpoint(srv.URL+"/"), tts.WithRetry(2, time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Synthesize(context.Background(), "oi"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d calls, want 2", calls.Load())
	}
}

func TestGoogle_ClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"bad voice","errors":[{"reason":"badRequest"}]}}`))
	}))
	defer srv.Close()

	g, _ := tts.NewGoogle(context.Background(), tts.WithAPIKey("k"), tts.WithEndpoint(srv.URL+"/"))
	_, err := g.Synthesize(context.Background(), "oi")

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "badRequest" {
		t.Errorf("got %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("client errors must not be retried, got %d calls", calls.Load())
	}
	if _, err := g.Synthesize(context.Background(), ""); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("empty text: got %v", err)
	}
}
