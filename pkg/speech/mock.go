package speech

import (
	"context"
	"sync"
)

// MockResult is one scripted recognition outcome.
type MockResult struct {
	Text string
	Err  error
}

// MockRecognizer returns scripted results in order, then ErrUnintelligible.
type MockRecognizer struct {
	mu        sync.Mutex
	results   []MockResult
	languages []string
	clips     []Clip
}

// NewMockRecognizer creates a recognizer that replays results.
func NewMockRecognizer(results ...MockResult) *MockRecognizer {
	return &MockRecognizer{results: results}
}

func (m *MockRecognizer) Recognize(ctx context.Context, clip Clip, language string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips = append(m.clips, clip)
	m.languages = append(m.languages, language)
	if len(m.results) == 0 {
		return "", ErrUnintelligible
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r.Text, r.Err
}

// Calls returns how many clips were recognized.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clips)
}

// Languages returns the language passed with each call.
func (m *MockRecognizer) Languages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.languages...)
}

// MockListener returns scripted clips or errors in order, then blocks
// until ctx is done.
type MockListener struct {
	mu    sync.Mutex
	steps []error
	calls int
}

// NewMockListener scripts the outcome of each Listen call; a nil entry
// yields a short clip.
func NewMockListener(steps ...error) *MockListener {
	return &MockListener{steps: steps}
}

func (m *MockListener) Listen(ctx context.Context) (Clip, error) {
	m.mu.Lock()
	m.calls++
	if len(m.steps) == 0 {
		m.mu.Unlock()
		<-ctx.Done()
		return Clip{}, ctx.Err()
	}
	err := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if err != nil {
		return Clip{}, err
	}
	return Clip{Samples: make([]int16, 1600), SampleRate: 16000}, nil
}

// Calls returns how many times Listen was called.
func (m *MockListener) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var (
	_ Recognizer = (*MockRecognizer)(nil)
	_ Listener   = (*MockListener)(nil)
)
