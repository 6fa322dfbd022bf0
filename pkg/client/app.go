// Package client runs the navigation aid on the user's device: it follows
// the camera feed, listens for voice commands, answers detection requests
// and speaks the results.
package client

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-eyeguide/pkg/camera"
	"github.com/teslashibe/go-eyeguide/pkg/command"
	"github.com/teslashibe/go-eyeguide/pkg/feedback"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/navigator"
	"github.com/teslashibe/go-eyeguide/pkg/speech"
)

// tick bounds how long the dispatch loop goes without checking the run flag.
const tick = 10 * time.Millisecond

// drainTimeout bounds how long queued feedback may play after shutdown starts.
const drainTimeout = 5 * time.Second

// Display shows frames for debugging. Show returns false to request shutdown.
type Display interface {
	Show(jpeg []byte, mode navigator.Mode) bool
	Close() error
}

// App wires the client's loops together. Source, Listener, Recognizer and
// Display are optional; a missing piece disables the loop that needs it.
type App struct {
	State      *navigator.State
	Frames     *framebuf.Ring
	Source     camera.Source
	Commands   *command.Channel
	Dispatcher *navigator.Dispatcher
	Feedback   *feedback.Queue
	Listener   speech.Listener
	Recognizer speech.Recognizer
	Display    Display
	Logger     *slog.Logger
}

// Run blocks until the user says an exit phrase, the display asks to quit
// or ctx is cancelled. Queued feedback is given a few seconds to finish.
func (a *App) Run(ctx context.Context) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "client")

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(loopCtx)

	feedbackDone := make(chan struct{})
	go func() {
		defer close(feedbackDone)
		a.Feedback.Run(context.WithoutCancel(ctx))
	}()

	if a.Source != nil {
		g.Go(func() error {
			camera.Follow(gctx, a.Source, func(b []byte) { a.Frames.Push(b) }, logger)
			return nil
		})
	} else {
		logger.Warn("no camera source, detection will report no signal")
	}

	if a.Listener != nil && a.Recognizer != nil {
		g.Go(func() error {
			return a.Commands.Run(gctx, a.Listener, a.Recognizer)
		})
	} else {
		logger.Warn("no microphone or recognizer, voice commands disabled")
		a.State.SetActive(true)
	}

	logger.Info("client running", "mode", a.State.Mode())
	a.dispatch(ctx, logger)

	a.State.Stop()
	a.Feedback.Close()
	select {
	case <-feedbackDone:
	case <-time.After(drainTimeout):
		logger.Warn("feedback still playing at shutdown")
	}
	cancel()

	err := g.Wait()
	if a.Display != nil {
		a.Display.Close()
	}
	logger.Info("client stopped")
	return err
}

// dispatch serves commands and drives the display until shutdown.
func (a *App) dispatch(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var shown uint64
	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-a.Commands.Commands():
			switch cmd.Kind {
			case command.Detect:
				a.Dispatcher.Handle(ctx)
			case command.Exit:
				logger.Info("exit requested")
				return
			}

		case <-ticker.C:
			if !a.State.Running() {
				return
			}
			if a.Display == nil {
				continue
			}
			if f, ok := a.Frames.Latest(); ok && f.Seq != shown {
				shown = f.Seq
				if !a.Display.Show(f.Data, a.State.Mode()) {
					logger.Info("display closed")
					return
				}
			}
		}
	}
}
