package audioio

import (
	"context"
	"io"
)

// Sink plays PCM audio on a speaker.
type Sink interface {
	// Start prepares the sink for writing.
	Start(ctx context.Context) error

	// Stop halts playback. It is safe to call Stop multiple times.
	Stop() error

	// Write queues a chunk for playback. Chunks must match Config's rate
	// and channel count.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush blocks until everything written has been played.
	Flush(ctx context.Context) error

	// Clear discards queued audio immediately.
	Clear() error

	Config() Config

	// Name returns the backend name ("alsa", "sox", "mock").
	Name() string

	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	ChunksWritten  int64  `json:"chunks_written"`
	SamplesWritten int64  `json:"samples_written"`
	Running        bool   `json:"running"`
	Backend        string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
