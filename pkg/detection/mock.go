package detection

import (
	"context"
	"image"
	"sync"
)

// Mock is a Detector returning canned results and recording calls.
type Mock struct {
	mu     sync.Mutex
	result Result
	err    error
	calls  [][]byte
	closed bool
}

// NewMock returns a detector that reports dets on a frame of the given size.
func NewMock(size image.Point, dets ...Detection) *Mock {
	return &Mock{result: Result{Size: size, Detections: dets}}
}

// SetError makes subsequent Detect calls fail with err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) Detect(ctx context.Context, jpeg []byte) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, jpeg)
	if m.err != nil {
		return Result{}, m.err
	}
	return m.result, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns the frames passed to Detect.
func (m *Mock) Calls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.calls...)
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Detector = (*Mock)(nil)
