// Package speech turns microphone audio into text.
//
// An EnergyListener cuts one phrase out of a live audio source and a
// Recognizer transcribes it.
package speech

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWaitTimeout is returned when nobody started speaking in time.
	ErrWaitTimeout = errors.New("speech: timed out waiting for speech")

	// ErrUnintelligible is returned when the recognizer heard no words.
	ErrUnintelligible = errors.New("speech: could not understand audio")
)

// Clip is one phrase of mono PCM16 audio.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Listener waits for and returns the next spoken phrase.
type Listener interface {
	Listen(ctx context.Context) (Clip, error)
}

// Recognizer transcribes a clip in the given BCP 47 language.
type Recognizer interface {
	Recognize(ctx context.Context, clip Clip, language string) (string, error)
}
