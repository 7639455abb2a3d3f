package telemetry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/argus-bot/telemetry/internal/metrics"
)

// stopTimeout bounds how long Stop waits for observers to flush.
const stopTimeout = 5 * time.Second

var (
	ErrObserverClosed  = errors.New("observer closed")
	ErrObserverStalled = errors.New("observer stalled")
)

// Observer is one connected listener.
type Observer interface {
	ID() string
	// Send hands payload to the observer without blocking. An error means
	// the observer can no longer receive.
	Send(payload []byte) error
	Closed() bool
	Close() error
}

type member struct {
	obs  Observer
	dead bool
}

// Hub manages the observer set.
//
// Lifecycle: Register -> Broadcast* -> mark dead -> Reap.
type Hub struct {
	mu        sync.Mutex
	observers map[string]*member
	logger    *slog.Logger
}

// WithHubLogger sets the logger for connect and disconnect diagnostics.
func WithHubLogger(logger *slog.Logger) func(*Hub) {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty hub.
func NewHub(options ...func(*Hub)) *Hub {
	h := &Hub{
		observers: make(map[string]*member),
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Register adds o to the set. Registering an ID that is already present is a
// no-op and returns false.
func (h *Hub) Register(o Observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.observers[o.ID()]; exists {
		return false
	}
	h.observers[o.ID()] = &member{obs: o}
	metrics.Observers.Set(float64(len(h.observers)))

	h.logger.Info("observer connected", "observer", o.ID(), "observers", len(h.observers))
	return true
}

// Unregister removes and closes the observer with the given ID. WebSocket
// observers call it through OnDisconnect when the peer goes away.
func (h *Hub) Unregister(id string) bool {
	h.mu.Lock()
	m, exists := h.observers[id]
	if exists {
		delete(h.observers, id)
		metrics.Observers.Set(float64(len(h.observers)))
	}
	remaining := len(h.observers)
	h.mu.Unlock()

	if !exists {
		return false
	}
	_ = m.obs.Close()
	h.logger.Info("observer disconnected", "observer", id, "observers", remaining)
	return true
}

// Broadcast sends payload to every live observer and returns how many
// accepted it. A failing observer is marked dead and skipped until reaped;
// the remaining observers still receive the payload.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.Lock()
	targets := make([]*member, 0, len(h.observers))
	for _, m := range h.observers {
		if !m.dead {
			targets = append(targets, m)
		}
	}
	h.mu.Unlock()

	// sends happen without the lock held
	var delivered int
	var failed []*member
	for _, m := range targets {
		if err := m.obs.Send(payload); err != nil {
			h.logger.Debug("send failed", "observer", m.obs.ID(), "error", err)
			metrics.SendFailures.Inc()
			failed = append(failed, m)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, m := range failed {
			m.dead = true
		}
		h.mu.Unlock()
	}

	return delivered
}

// Reap removes observers that failed a send or report Closed, closing each,
// and returns how many were removed.
func (h *Hub) Reap() int {
	h.mu.Lock()
	var reaped []Observer
	for id, m := range h.observers {
		if m.dead || m.obs.Closed() {
			reaped = append(reaped, m.obs)
			delete(h.observers, id)
		}
	}
	remaining := len(h.observers)
	if len(reaped) > 0 {
		metrics.Observers.Set(float64(remaining))
	}
	h.mu.Unlock()

	for _, o := range reaped {
		_ = o.Close()
		h.logger.Info("observer disconnected", "observer", o.ID(), "observers", remaining)
	}
	metrics.ObserversReaped.Add(float64(len(reaped)))

	return len(reaped)
}

// Len returns the number of registered observers, including any not yet reaped.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// IDs returns the registered observer IDs in sorted order.
func (h *Hub) IDs() []string {
	h.mu.Lock()
	ids := make([]string, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// waiter is implemented by observers that finish work after Close returns.
type waiter interface {
	Wait()
}

// Stop closes and removes every observer, then waits up to stopTimeout for
// their goroutines to finish.
func (h *Hub) Stop() {
	h.mu.Lock()
	observers := h.observers
	h.observers = make(map[string]*member)
	metrics.Observers.Set(0)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, m := range observers {
		_ = m.obs.Close()
		if w, ok := m.obs.(waiter); ok {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Wait()
			}()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		h.logger.Warn("observers did not stop in time", "timeout", stopTimeout)
	}
}
