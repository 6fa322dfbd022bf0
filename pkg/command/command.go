// Package command turns recognized utterances into control commands.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/go-eyeguide/internal/metrics"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
	"github.com/teslashibe/go-eyeguide/pkg/navigator"
	"github.com/teslashibe/go-eyeguide/pkg/speech"
)

// Kind identifies a command.
type Kind int

const (
	Activate Kind = iota
	Deactivate
	SetMode
	Detect
	Exit
)

func (k Kind) String() string {
	switch k {
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	case SetMode:
		return "set_mode"
	case Detect:
		return "detect"
	case Exit:
		return "exit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is one control action. Mode is set for SetMode.
type Command struct {
	Kind Kind
	Mode navigator.Mode
}

// Prompt files looked up in Config.AudioDir.
const (
	PromptStandby = "standby.mp3"
	PromptStart   = "inicio.mp3"
	PromptExit    = "sair.mp3"
)

// Announcer queues feedback for the user.
type Announcer interface {
	Say(text string) error
	Play(path string) error
}

// Config configures a Channel.
type Config struct {
	// Cooldown is the minimum time between two processed utterances.
	Cooldown time.Duration
	// ExitDelay lets the goodbye prompt play before Exit is queued.
	ExitDelay time.Duration
	// AudioDir holds the optional prompt files.
	AudioDir string
	// QueueSize is the capacity of the command queue.
	QueueSize int
}

// DefaultConfig returns the timings the system was tuned with.
func DefaultConfig() Config {
	return Config{
		Cooldown:  2 * time.Second,
		ExitDelay: 3 * time.Second,
		AudioDir:  "audios",
		QueueSize: 16,
	}
}

// Channel classifies utterances, applies mode and activation changes
// directly and queues Detect and Exit for the dispatcher.
type Channel struct {
	cfg     Config
	state   *navigator.State
	phrases navigation.Phrasebook
	out     Announcer
	cmds    chan Command
	logger  *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	last time.Time
}

// NewChannel creates a command channel.
func NewChannel(cfg Config, state *navigator.State, phrases navigation.Phrasebook, out Announcer, logger *slog.Logger) *Channel {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		cfg:     cfg,
		state:   state,
		phrases: phrases,
		out:     out,
		cmds:    make(chan Command, cfg.QueueSize),
		logger:  logger.With("component", "command"),
		now:     time.Now,
		after:   time.After,
	}
}

// Commands is the queue read by the dispatcher.
func (c *Channel) Commands() <-chan Command {
	return c.cmds
}

// Handle classifies one utterance. It reports false when the utterance
// arrived within the cooldown or matched nothing actionable.
func (c *Channel) Handle(utterance string) (Command, bool) {
	c.mu.Lock()
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) < c.cfg.Cooldown {
		c.mu.Unlock()
		c.logger.Debug("utterance ignored during cooldown", "text", utterance)
		return Command{}, false
	}
	c.last = now
	c.mu.Unlock()

	var cmd Command
	switch {
	case navigation.Matches(utterance, c.phrases.Activate):
		c.state.SetActive(true)
		c.prompt(PromptStart, c.phrases.Started)
		cmd = Command{Kind: Activate}

	case navigation.Matches(utterance, c.phrases.Exit):
		c.state.SetActive(false)
		c.prompt(PromptExit, c.phrases.Stopping)
		go func() {
			<-c.after(c.cfg.ExitDelay)
			c.cmds <- Command{Kind: Exit}
		}()
		cmd = Command{Kind: Exit}

	case navigation.Matches(utterance, c.phrases.CloudMode):
		c.state.SetMode(navigator.ModeCloud)
		c.say(c.phrases.CloudModeOn)
		cmd = Command{Kind: SetMode, Mode: navigator.ModeCloud}

	case navigation.Matches(utterance, c.phrases.LocalMode):
		c.state.SetMode(navigator.ModeLocal)
		c.say(c.phrases.LocalModeOn)
		cmd = Command{Kind: SetMode, Mode: navigator.ModeLocal}

	case c.state.Active() && navigation.Matches(utterance, c.phrases.Detect):
		select {
		case c.cmds <- Command{Kind: Detect}:
		default:
			c.logger.Warn("command queue full, detection request dropped")
			return Command{}, false
		}
		cmd = Command{Kind: Detect}

	default:
		return Command{}, false
	}

	metrics.Commands.WithLabelValues(cmd.Kind.String()).Inc()
	c.logger.Info("command", "kind", cmd.Kind, "mode", cmd.Mode, "text", utterance)
	return cmd, true
}

// Run listens for commands until ctx is done or the user says an exit
// phrase. It announces standby and activates the system first.
func (c *Channel) Run(ctx context.Context, listener speech.Listener, recognizer speech.Recognizer) error {
	c.state.SetActive(true)
	c.prompt(PromptStandby, c.phrases.Started)
	c.logger.Info("listening for commands", "language", c.phrases.Language)

	for ctx.Err() == nil && c.state.Running() {
		clip, err := listener.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, speech.ErrWaitTimeout) {
				continue
			}
			c.logger.Error("listen failed", "error", err)
			if !c.pause(ctx) {
				return nil
			}
			continue
		}

		text, err := recognizer.Recognize(ctx, clip, c.phrases.Language)
		if err != nil {
			if errors.Is(err, speech.ErrUnintelligible) || ctx.Err() != nil {
				continue
			}
			c.logger.Error("recognition failed", "error", err)
			continue
		}
		c.logger.Debug("heard", "text", text)

		if cmd, ok := c.Handle(text); ok && cmd.Kind == Exit {
			return nil
		}
	}
	return nil
}

// pause backs off after a microphone error.
func (c *Channel) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.after(500 * time.Millisecond):
		return true
	}
}

// prompt plays the named file from AudioDir when present, else speaks fallback.
func (c *Channel) prompt(file, fallback string) {
	if c.cfg.AudioDir != "" {
		path := filepath.Join(c.cfg.AudioDir, file)
		if _, err := os.Stat(path); err == nil {
			if err := c.out.Play(path); err != nil {
				c.logger.Warn("feedback dropped", "file", path, "error", err)
			}
			return
		}
	}
	c.say(fallback)
}

func (c *Channel) say(text string) {
	if err := c.out.Say(text); err != nil {
		c.logger.Warn("feedback dropped", "text", text, "error", err)
	}
}
