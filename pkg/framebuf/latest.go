// Package framebuf holds camera frames between producers and consumers.
//
// Latest is the camera-side single slot: the demuxer overwrites it and any
// number of stream responders read the newest frame, skipping what they missed.
// Ring is the client-side recency buffer of the last N received frames.
package framebuf

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Subscription.Next after Latest.Close.
var ErrClosed = errors.New("framebuf: closed")

// DefaultPollInterval is how often a waiting subscriber rechecks the slot.
const DefaultPollInterval = 100 * time.Millisecond

// Frame is one complete JPEG image.
type Frame struct {
	Data       []byte
	Seq        uint64
	CapturedAt time.Time
}

// Age reports how long ago the frame was captured.
func (f Frame) Age() time.Duration {
	if f.CapturedAt.IsZero() {
		return 0
	}
	return time.Since(f.CapturedAt)
}

// Latest is a single-slot frame cell. Publish overwrites the slot and never
// waits on readers.
type Latest struct {
	mu      sync.Mutex
	frame   Frame
	has     bool
	notify  chan struct{} // closed and replaced on every publish
	closed  bool
	poll    time.Duration
	dropped uint64
	now     func() time.Time
}

// LatestOption configures a Latest.
type LatestOption func(*Latest)

// WithPollInterval sets the subscriber recheck interval.
func WithPollInterval(d time.Duration) LatestOption {
	return func(l *Latest) {
		if d > 0 {
			l.poll = d
		}
	}
}

// NewLatest creates an empty slot.
func NewLatest(opts ...LatestOption) *Latest {
	l := &Latest{
		notify: make(chan struct{}),
		poll:   DefaultPollInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Publish stores data as the newest frame and wakes waiting subscribers.
// The slice must not be modified afterwards.
func (l *Latest) Publish(data []byte) Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Frame{}
	}
	l.frame = Frame{
		Data:       data,
		Seq:        l.frame.Seq + 1,
		CapturedAt: l.now(),
	}
	l.has = true

	close(l.notify)
	l.notify = make(chan struct{})
	return l.frame
}

// Get returns the newest frame, or false if none has been published.
func (l *Latest) Get() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame, l.has
}

// Close ends all subscriptions. A subscriber still receives the final frame
// if it has not seen it, then ErrClosed. Later publishes are ignored.
func (l *Latest) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.notify)
}

// Subscribe returns a cursor that yields each newer frame at most once.
func (l *Latest) Subscribe() *Subscription {
	return &Subscription{l: l}
}

// Dropped reports how many frames subscribers skipped in total.
func (l *Latest) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Subscription tracks the last sequence a consumer has seen.
// It must be used from a single goroutine.
type Subscription struct {
	l       *Latest
	lastSeq uint64
}

// Next returns the first frame newer than the previous one returned, waiting
// for a publish, the poll interval or ctx, whichever comes first.
// A slow consumer receives the newest frame and skips the ones in between.
func (s *Subscription) Next(ctx context.Context) (Frame, error) {
	ticker := time.NewTicker(s.l.poll)
	defer ticker.Stop()

	for {
		s.l.mu.Lock()
		if s.l.has && s.l.frame.Seq > s.lastSeq {
			f := s.l.frame
			if s.lastSeq > 0 && f.Seq > s.lastSeq+1 {
				s.l.dropped += f.Seq - s.lastSeq - 1
			}
			s.lastSeq = f.Seq
			s.l.mu.Unlock()
			return f, nil
		}
		if s.l.closed {
			s.l.mu.Unlock()
			return Frame{}, ErrClosed
		}
		notify := s.l.notify
		s.l.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-notify:
		case <-ticker.C:
		}
	}
}

// LastSeq is the sequence of the last frame returned by Next.
func (s *Subscription) LastSeq() uint64 {
	return s.lastSeq
}
