// Package navigator turns detection requests into spoken guidance.
package navigator

import (
	"sync/atomic"
)

// Mode selects where detection runs.
type Mode int32

const (
	ModeLocal Mode = iota
	ModeCloud
)

func (m Mode) String() string {
	if m == ModeCloud {
		return "cloud"
	}
	return "local"
}

// State is the client's shared run state. It is safe for concurrent use.
type State struct {
	mode    atomic.Int32
	active  atomic.Bool
	running atomic.Bool
}

// NewState returns a running, inactive state in the given mode.
func NewState(mode Mode) *State {
	s := &State{}
	s.mode.Store(int32(mode))
	s.running.Store(true)
	return s
}

func (s *State) Mode() Mode { return Mode(s.mode.Load()) }

func (s *State) SetMode(m Mode) { s.mode.Store(int32(m)) }

// Active reports whether detection requests are accepted.
func (s *State) Active() bool { return s.active.Load() }

func (s *State) SetActive(v bool) { s.active.Store(v) }

// Running is false once shutdown has begun.
func (s *State) Running() bool { return s.running.Load() }

// Stop marks the system as shutting down.
func (s *State) Stop() { s.running.Store(false) }
