package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/audioio"
)

// ListenerConfig tunes phrase detection. All durations are measured in
// audio time, not wall time.
type ListenerConfig struct {
	// EnergyThreshold is the normalized power (see audioio.CalculateRMS)
	// above which a chunk counts as speech.
	EnergyThreshold float64

	// WaitTimeout bounds the silence before a phrase starts.
	WaitTimeout time.Duration

	// PhraseLimit bounds the length of one phrase.
	PhraseLimit time.Duration

	// Pause is the trailing silence that ends a phrase.
	Pause time.Duration

	// PreRoll is audio kept from before the threshold was crossed so the
	// first syllable is not clipped.
	PreRoll time.Duration
}

// DefaultListenerConfig returns the settings used by the client: wait 3s
// for speech and cut phrases at 5s.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		EnergyThreshold: 0.005,
		WaitTimeout:     3 * time.Second,
		PhraseLimit:     5 * time.Second,
		Pause:           800 * time.Millisecond,
		PreRoll:         300 * time.Millisecond,
	}
}

// EnergyListener detects phrases by signal power on an audio source.
type EnergyListener struct {
	source audioio.Source
	cfg    ListenerConfig
	logger *slog.Logger
}

// NewEnergyListener creates a listener reading from source. The source must
// already be started.
func NewEnergyListener(source audioio.Source, cfg ListenerConfig, logger *slog.Logger) *EnergyListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnergyListener{
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "speech.listener"),
	}
}

// Listen returns the next phrase. It fails with ErrWaitTimeout if no speech
// starts within WaitTimeout.
func (l *EnergyListener) Listen(ctx context.Context) (Clip, error) {
	rate := l.source.Config().SampleRate

	var (
		preRoll  [][]int16
		preDur   time.Duration
		phrase   []int16
		waited   time.Duration
		spoken   time.Duration
		silence  time.Duration
		speaking bool
	)

	for {
		chunk, err := l.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) && speaking {
				return Clip{Samples: phrase, SampleRate: rate}, nil
			}
			return Clip{}, fmt.Errorf("read audio: %w", err)
		}

		samples := audioio.Downmix(chunk.Samples, chunk.Channels)
		dur := time.Duration(float64(time.Second) * chunk.Duration())
		loud := audioio.CalculateRMS(samples) >= l.cfg.EnergyThreshold

		if !speaking {
			if !loud {
				waited += dur
				if waited >= l.cfg.WaitTimeout {
					return Clip{}, ErrWaitTimeout
				}
				preRoll = append(preRoll, samples)
				preDur += dur
				for len(preRoll) > 1 && preDur > l.cfg.PreRoll {
					preDur -= time.Duration(len(preRoll[0])) * time.Second / time.Duration(rate)
					preRoll = preRoll[1:]
				}
				continue
			}
			speaking = true
			for _, p := range preRoll {
				phrase = append(phrase, p...)
			}
			preRoll = nil
			l.logger.Debug("speech started", "waited", waited)
		}

		phrase = append(phrase, samples...)
		spoken += dur
		if loud {
			silence = 0
		} else {
			silence += dur
		}

		if silence >= l.cfg.Pause || spoken >= l.cfg.PhraseLimit {
			l.logger.Debug("phrase captured", "duration", spoken, "limited", spoken >= l.cfg.PhraseLimit)
			return Clip{Samples: phrase, SampleRate: rate}, nil
		}
	}
}

var _ Listener = (*EnergyListener)(nil)
