// Package feedback serializes everything the user hears.
//
// Producers enqueue texts and prompt files; a single consumer speaks or
// plays them one at a time, so two messages never overlap.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/navigation"
	"github.com/teslashibe/go-eyeguide/pkg/tts"
)

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("feedback: queue closed")

	// ErrFull is returned when the queue stays full for the whole enqueue timeout.
	ErrFull = errors.New("feedback: queue full")
)

// Item is one piece of feedback: a text to speak or a file to play.
type Item struct {
	Text string
	File string

	stop bool
}

// Player plays synthesized speech and audio files to completion.
type Player interface {
	PlayAudio(ctx context.Context, res *tts.AudioResult) error
	PlayFile(ctx context.Context, path string) error
}

// Config configures a Queue.
type Config struct {
	// Capacity is the number of items buffered before Enqueue waits.
	Capacity int
	// EnqueueTimeout bounds how long Enqueue waits on a full queue.
	EnqueueTimeout time.Duration
}

// DefaultConfig returns a 32 item queue with a one second enqueue wait.
func DefaultConfig() Config {
	return Config{Capacity: 32, EnqueueTimeout: time.Second}
}

// Queue is a FIFO of feedback items with a single consumer.
type Queue struct {
	cfg     Config
	items   chan Item
	speaker tts.Provider
	player  Player
	phrases navigation.Phrasebook
	logger  *slog.Logger

	// mu is held shared by every Enqueue for the whole send, so Close
	// cannot slip the stop item in ahead of an accepted item.
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue that speaks through speaker and plays through player.
func NewQueue(cfg Config, speaker tts.Provider, player Player, phrases navigation.Phrasebook, logger *slog.Logger) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:     cfg,
		items:   make(chan Item, cfg.Capacity+1),
		speaker: speaker,
		player:  player,
		phrases: phrases,
		logger:  logger.With("component", "feedback"),
	}
}

// Say enqueues a text to be spoken.
func (q *Queue) Say(text string) error {
	return q.Enqueue(Item{Text: text})
}

// Play enqueues an audio file to be played.
func (q *Queue) Play(path string) error {
	return q.Enqueue(Item{File: path})
}

// Enqueue adds an item. It returns at once while the queue has room and
// otherwise waits up to the configured timeout. An item for which Enqueue
// returned nil is always handled before Run stops on Close.
func (q *Queue) Enqueue(item Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- item:
		return nil
	default:
	}

	timer := time.NewTimer(q.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case q.items <- item:
		return nil
	case <-timer.C:
		q.logger.Warn("dropping feedback, queue full", "text", item.Text, "file", item.File)
		return ErrFull
	}
}

// Close asks the consumer to stop after the items already queued. It waits
// for enqueues in flight, at most the enqueue timeout.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true

	// the spare slot keeps this from blocking when producers filled the queue
	select {
	case q.items <- Item{stop: true}:
	default:
		go func() { q.items <- Item{stop: true} }()
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Run consumes items until Close or ctx is done. Playback errors are logged.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("feedback queue started")
	defer q.logger.Info("feedback queue stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-q.items:
			if item.stop {
				return nil
			}
			q.handle(ctx, item)
		}
	}
}

func (q *Queue) handle(ctx context.Context, item Item) {
	if item.File != "" {
		if _, err := os.Stat(item.File); err != nil {
			q.logger.Warn("audio file missing", "path", item.File)
			q.speak(ctx, q.phrases.MissingFile(item.File))
			return
		}
		if err := q.player.PlayFile(ctx, item.File); err != nil {
			q.logger.Error("play file failed", "path", item.File, "error", err)
		}
		return
	}
	q.speak(ctx, item.Text)
}

func (q *Queue) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	q.logger.Info("speaking", "text", text)

	res, err := q.speaker.Synthesize(ctx, text)
	if err != nil {
		q.logger.Error("synthesis failed", "text", text, "error", err)
		return
	}
	if err := q.player.PlayAudio(ctx, res); err != nil {
		q.logger.Error("playback failed", "text", text, "error", err)
	}
}
