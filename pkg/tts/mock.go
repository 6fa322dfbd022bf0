package tts

import (
	"context"
	"sync"
	"time"
)

// mockBytesPerChar is 20ms of 16kHz PCM16 per character, roughly speech pace.
const mockBytesPerChar = 640

// Mock is a Provider for tests. It records every call; SynthesizeFunc and
// HealthFunc replace the default behaviour, which returns silence.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded method invocation.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock returns a healthy mock that speaks silence.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock whose Synthesize and Health always fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// WithLatency delays every Synthesize of m by delay, honouring ctx.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
		if next != nil {
			return next(ctx, text)
		}
		return silence(text), nil
	}
	return m
}

func silence(text string) *AudioResult {
	return &AudioResult{
		Audio: make([]byte, len(text)*mockBytesPerChar),
		Format: AudioFormat{
			Encoding:   EncodingPCM16,
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		CharCount: len(text),
		Duration:  time.Duration(len(text)) * 20 * time.Millisecond,
	}
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return silence(text), nil
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *Mock) Close() error {
	m.record("Close", "")
	return nil
}

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount counts the calls to method.
func (m *Mock) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Texts returns what was passed to Synthesize, in order.
func (m *Mock) Texts() []string {
	var texts []string
	for _, c := range m.Calls() {
		if c.Method == "Synthesize" {
			texts = append(texts, c.Text)
		}
	}
	return texts
}

// Reset forgets the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

var _ Provider = (*Mock)(nil)
