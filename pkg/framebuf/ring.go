package framebuf

import (
	"sync"
	"time"
)

// DefaultRingSize is the number of frames kept by the client.
const DefaultRingSize = 10

// Ring keeps the most recent frames in arrival order, evicting the oldest
// once capacity is reached. Safe for concurrent use.
type Ring struct {
	mu     sync.Mutex
	frames []Frame
	head   int // index of the oldest frame
	size   int
	seq    uint64
}

// NewRing creates a ring holding up to n frames; n <= 0 uses DefaultRingSize.
func NewRing(n int) *Ring {
	if n <= 0 {
		n = DefaultRingSize
	}
	return &Ring{frames: make([]Frame, n)}
}

// Push copies data into the ring as the newest frame.
func (r *Ring) Push(data []byte) Frame {
	cp := make([]byte, len(data))
	copy(cp, data)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	f := Frame{Data: cp, Seq: r.seq, CapturedAt: time.Now()}

	idx := (r.head + r.size) % len(r.frames)
	if r.size == len(r.frames) {
		r.head = (r.head + 1) % len(r.frames)
	} else {
		r.size++
	}
	r.frames[idx] = f
	return f
}

// Latest returns the most recently pushed frame.
func (r *Ring) Latest() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return Frame{}, false
	}
	return r.frames[(r.head+r.size-1)%len(r.frames)], true
}

// Snapshot returns the buffered frames, oldest first.
func (r *Ring) Snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.frames[(r.head+i)%len(r.frames)]
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *Ring) Cap() int {
	return len(r.frames)
}
