// Package daemon owns the wake word daemon's shared state and its lifecycle.
package daemon

import (
	"sync"
	"sync/atomic"
)

// State holds the two flags shared between the control surface and the detection loop.
type State struct {
	running   atomic.Bool
	listening atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}
}

// NewState returns a running state with listening enabled.
func NewState() *State {
	s := &State{done: make(chan struct{})}
	s.running.Store(true)
	s.listening.Store(true)
	return s
}

func (s *State) Running() bool {
	return s.running.Load()
}

func (s *State) Listening() bool {
	return s.listening.Load()
}

// SetListening enables or disables listening and reports whether the value changed.
func (s *State) SetListening(enabled bool) bool {
	return s.listening.Swap(enabled) != enabled
}

// ToggleListening flips the listening flag and returns the new value.
func (s *State) ToggleListening() bool {
	for {
		current := s.listening.Load()
		if s.listening.CompareAndSwap(current, !current) {
			return !current
		}
	}
}

// Stop clears the running flag. Only the first call has an effect.
func (s *State) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		close(s.done)
	})
}

// Done is closed once the daemon stops running.
func (s *State) Done() <-chan struct{} {
	return s.done
}
