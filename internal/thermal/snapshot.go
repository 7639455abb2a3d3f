package thermal

import (
	"sync"
	"time"
)

// Snapshot keeps the latest frame for readers outside the sampling loop.
type Snapshot struct {
	mu    sync.RWMutex
	frame Frame
	at    time.Time
	ok    bool
}

// Store replaces the latest frame.
func (s *Snapshot) Store(f Frame) {
	s.mu.Lock()
	s.frame = f
	s.at = time.Now()
	s.ok = true
	s.mu.Unlock()
}

// Load returns a copy of the latest frame and when it was stored. ok is false
// until the first Store.
func (s *Snapshot) Load() (f Frame, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.at, s.ok
}
