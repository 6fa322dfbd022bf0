package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// commandFunc builds the capture or playback process; tests replace it.
type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// captureCommand returns the recorder invocation writing raw PCM16 to stdout.
func captureCommand(backend Backend, cfg Config) (string, []string) {
	rate, ch := strconv.Itoa(cfg.SampleRate), strconv.Itoa(cfg.Channels)
	if backend == BackendSoX {
		return "rec", []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer",
			"-c", ch, "-r", rate, "-"}
	}
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return "arecord", args
}

// playbackCommand returns the player invocation reading raw PCM16 from stdin.
func playbackCommand(backend Backend, cfg Config) (string, []string) {
	rate, ch := strconv.Itoa(cfg.SampleRate), strconv.Itoa(cfg.Channels)
	if backend == BackendSoX {
		return "play", []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer",
			"-c", ch, "-r", rate, "-"}
	}
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return "aplay", append(args, "-")
}

// ProcessSource captures audio from a recorder subprocess.
type ProcessSource struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	command commandFunc

	mu       sync.Mutex
	running  bool
	closed   bool
	cancel   context.CancelFunc
	streamCh chan AudioChunk
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newProcessSource(backend Backend, cfg Config, logger *slog.Logger) *ProcessSource {
	return &ProcessSource{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		command: exec.CommandContext,
	}
}

// Start launches the recorder.
func (s *ProcessSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if s.cancel != nil {
		// previous recorder exited on its own
		s.cancel()
	}

	name, args := captureCommand(s.backend, s.cfg)
	pctx, cancel := context.WithCancel(ctx)
	cmd := s.command(pctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", name, err)
	}

	s.running = true
	s.cancel = cancel
	s.streamCh = make(chan AudioChunk, 32)
	s.done = make(chan struct{})
	go s.captureLoop(cmd, stdout, s.streamCh, s.done)

	s.logger.Info("audio capture started", "backend", s.backend, "device", s.cfg.Device,
		"sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *ProcessSource) captureLoop(cmd *exec.Cmd, stdout io.Reader, out chan<- AudioChunk, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		n, err := io.ReadFull(stdout, buf)
		if n >= 2 {
			var chunk AudioChunk
			chunk.FromBytes(buf[:n-n%2], s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				s.overruns.Add(1)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Warn("audio capture read", "error", err)
			}
			break
		}
	}
	if err := cmd.Wait(); err != nil {
		s.logger.Debug("recorder exited", "error", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Stop kills the recorder and waits for the capture loop to finish.
func (s *ProcessSource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	s.logger.Info("audio capture stopped")
	return nil
}

// Read returns the next captured chunk.
func (s *ProcessSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()
	if ch == nil {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (s *ProcessSource) Config() Config { return s.cfg }

func (s *ProcessSource) Name() string { return string(s.backend) }

// Close stops capture for good.
func (s *ProcessSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns source statistics.
func (s *ProcessSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     string(s.backend),
	}
}

var _ SourceWithStats = (*ProcessSource)(nil)

// ProcessSink plays audio through a player subprocess. The player is
// launched on the first Write and runs until Flush, so one utterance is
// one process and Flush returns when the speaker has gone quiet.
type ProcessSink struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	command commandFunc

	mu      sync.Mutex
	started bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	cancel  context.CancelFunc

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

func newProcessSink(backend Backend, cfg Config, logger *slog.Logger) *ProcessSink {
	return &ProcessSink{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		command: exec.CommandContext,
	}
}

// Start enables writing.
func (s *ProcessSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.started = true
	return nil
}

// Stop kills any running player.
func (s *ProcessSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.killLocked()
	return nil
}

func (s *ProcessSink) launchLocked(ctx context.Context) error {
	name, args := playbackCommand(s.backend, s.cfg)
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := s.command(pctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", name, err)
	}
	s.cmd, s.stdin, s.cancel = cmd, stdin, cancel
	return nil
}

// Write sends a chunk to the player, starting it if needed.
func (s *ProcessSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if !s.started {
		return fmt.Errorf("sink not running")
	}
	if s.cmd == nil {
		if err := s.launchLocked(ctx); err != nil {
			return err
		}
	}
	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		s.killLocked()
		return fmt.Errorf("write to player: %w", err)
	}
	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush closes the player's input and waits for it to finish playing.
// Cancelling ctx kills the player.
func (s *ProcessSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	s.stdin.Close()

	done := make(chan error, 1)
	cmd := s.cmd
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
		err = ctx.Err()
	}
	s.cancel()
	s.cmd, s.stdin, s.cancel = nil, nil, nil
	return err
}

// Clear drops whatever is playing.
func (s *ProcessSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return nil
}

func (s *ProcessSink) killLocked() {
	if s.cmd == nil {
		return
	}
	s.stdin.Close()
	s.cancel()
	s.cmd.Wait()
	s.cmd, s.stdin, s.cancel = nil, nil, nil
}

func (s *ProcessSink) Config() Config { return s.cfg }

func (s *ProcessSink) Name() string { return string(s.backend) }

// Close stops playback for good.
func (s *ProcessSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.started = false
	s.killLocked()
	return nil
}

// Stats returns sink statistics.
func (s *ProcessSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.cmd != nil
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        string(s.backend),
	}
}

var _ SinkWithStats = (*ProcessSink)(nil)
