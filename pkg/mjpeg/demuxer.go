// Package mjpeg extracts JPEG frames from raw MJPEG byte streams and carries
// them over the multipart/x-mixed-replace wire format.
//
// The capture binaries on the camera unit write back-to-back JPEG images to
// stdout with no length prefix or framing. Demuxer recovers the images by
// scanning for the JPEG start-of-image and end-of-image markers:
//
//	d := mjpeg.NewDemuxer(stdout)
//	for {
//	    frame, err := d.Next()
//	    if err != nil {
//	        break // io.EOF when the process exits
//	    }
//	    latest.Publish(frame)
//	}
package mjpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// JPEG markers delimiting one frame.
var (
	StartMarker = []byte{0xFF, 0xD8}
	EndMarker   = []byte{0xFF, 0xD9}
)

const (
	// DefaultChunkSize is the read size used against the source.
	DefaultChunkSize = 1024

	// DefaultMaxBuffer bounds the scan buffer. A frame larger than this
	// cannot be recovered and is discarded.
	DefaultMaxBuffer = 8 << 20

	// maxEmptyReads mirrors io.ReadAtLeast's tolerance for (0, nil) reads.
	maxEmptyReads = 100
)

// Demuxer splits a markerless byte stream into JPEG frames.
// It is not safe for concurrent use; Stats may be read from any goroutine.
type Demuxer struct {
	r         io.Reader
	chunk     []byte
	buf       []byte
	maxBuffer int
	eof       bool
	onDiscard func(n int)

	frames    atomic.Uint64
	bytesRead atomic.Uint64
	discarded atomic.Uint64
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithChunkSize sets the read size. Only latency depends on it.
func WithChunkSize(n int) Option {
	return func(d *Demuxer) {
		if n > 0 {
			d.chunk = make([]byte, n)
		}
	}
}

// WithMaxBuffer bounds the number of bytes held while waiting for an end marker.
func WithMaxBuffer(n int) Option {
	return func(d *Demuxer) {
		if n > 0 {
			d.maxBuffer = n
		}
	}
}

// WithDiscardFunc calls fn with the size of every run of bytes dropped,
// whether a frame follows or not. fn runs on the reading goroutine.
func WithDiscardFunc(fn func(n int)) Option {
	return func(d *Demuxer) { d.onDiscard = fn }
}

// NewDemuxer creates a demuxer reading from r.
func NewDemuxer(r io.Reader, opts ...Option) *Demuxer {
	d := &Demuxer{
		r:         r,
		chunk:     make([]byte, DefaultChunkSize),
		maxBuffer: DefaultMaxBuffer,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats is a snapshot of demuxer counters.
type Stats struct {
	Frames    uint64 // frames emitted
	BytesRead uint64 // bytes read from the source
	Discarded uint64 // bytes dropped because they belonged to no frame
}

// Stats returns the current counters.
func (d *Demuxer) Stats() Stats {
	return Stats{
		Frames:    d.frames.Load(),
		BytesRead: d.bytesRead.Load(),
		Discarded: d.discarded.Load(),
	}
}

// Next returns the next complete frame, reading from the source as needed.
// The returned slice is owned by the caller.
//
// When the source ends, frames already complete in the buffer are still
// returned; after that Next returns io.EOF. A trailing partial frame is dropped.
// A source that never produces a start marker simply never yields a frame.
func (d *Demuxer) Next() ([]byte, error) {
	empty := 0
	for {
		if frame := d.scan(); frame != nil {
			return frame, nil
		}
		if d.eof {
			return nil, io.EOF
		}
		d.enforceLimit()

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			empty = 0
			d.bytesRead.Add(uint64(n))
			d.buf = append(d.buf, d.chunk[:n]...)
		}

		switch {
		case errors.Is(err, io.EOF):
			d.eof = true
		case err != nil:
			return nil, err
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return nil, io.ErrNoProgress
			}
		}
	}
}

// Run emits frames until the source ends or ctx is cancelled.
// A clean end of stream returns nil. Cancellation is only observed between
// reads; close the source to unblock a pending read.
func (d *Demuxer) Run(ctx context.Context, emit func([]byte)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := d.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		emit(frame)
	}
}

// scan extracts the first complete frame from the buffer, or returns nil.
func (d *Demuxer) scan() []byte {
	start := bytes.Index(d.buf, StartMarker)
	if start < 0 {
		// Nothing here can start a frame. Keep a trailing 0xFF: it may be
		// the first half of a start marker split across reads.
		keep := 0
		if n := len(d.buf); n > 0 && d.buf[n-1] == StartMarker[0] {
			keep = 1
		}
		d.discard(len(d.buf) - keep)
		return nil
	}

	end := bytes.Index(d.buf[start+len(StartMarker):], EndMarker)
	if end < 0 {
		d.discard(start)
		return nil
	}
	end += start + len(StartMarker) + len(EndMarker)

	frame := make([]byte, end-start)
	copy(frame, d.buf[start:end])

	d.countDiscarded(start)
	d.buf = append(d.buf[:0], d.buf[end:]...)
	d.frames.Add(1)
	return frame
}

// discard drops the first n buffered bytes.
func (d *Demuxer) discard(n int) {
	if n <= 0 {
		return
	}
	d.countDiscarded(n)
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

func (d *Demuxer) countDiscarded(n int) {
	if n <= 0 {
		return
	}
	d.discarded.Add(uint64(n))
	if d.onDiscard != nil {
		d.onDiscard(n)
	}
}

// enforceLimit drops an unterminated frame that outgrew maxBuffer.
// Called only after scan found no complete frame.
func (d *Demuxer) enforceLimit() {
	if len(d.buf) > d.maxBuffer {
		d.discard(len(d.buf))
	}
}
