// Package loop runs the fixed-cadence sample and broadcast cycle.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/argus-bot/telemetry/internal/gas"
	"github.com/argus-bot/telemetry/internal/metrics"
	"github.com/argus-bot/telemetry/internal/telemetry"
	"github.com/argus-bot/telemetry/internal/thermal"
)

// State is the loop's position within a cycle.
type State int32

const (
	Idle State = iota
	Sampling
	Encoding
	Broadcasting
	// Starting is reported by a Handle before its loop exists.
	Starting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case Encoding:
		return "encoding"
	case Broadcasting:
		return "broadcasting"
	case Starting:
		return "starting"
	default:
		return "unknown"
	}
}

// GasReader samples both gas channels.
type GasReader interface {
	Read() gas.Reading
}

// FrameSource polls the thermal imager.
type FrameSource interface {
	Acquire() (thermal.Frame, bool)
}

// Broadcaster is the part of the hub the loop drives.
type Broadcaster interface {
	Broadcast(payload []byte) int
	Reap() int
}

// Result describes one completed cycle.
type Result struct {
	Reaped           int
	Gas              gas.Reading
	GasDelivered     int
	ThermalOK        bool
	ThermalDelivered int
}

// Stats is a point-in-time view of the loop counters.
type Stats struct {
	State         State
	Cycles        uint64
	ThermalOK     uint64
	ThermalFailed uint64
	LastGas       gas.Reading
	LastCycle     time.Time
}

// Loop owns its handles; nothing here is shared through package state.
type Loop struct {
	gas      GasReader
	thermal  FrameSource
	hub      Broadcaster
	interval time.Duration
	snapshot *thermal.Snapshot
	logger   *slog.Logger

	state         atomic.Int32
	cycles        atomic.Uint64
	thermalOK     atomic.Uint64
	thermalFailed atomic.Uint64

	mu        sync.Mutex
	lastGas   gas.Reading
	lastCycle time.Time
}

// WithLogger sets the loop logger.
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithSnapshot publishes every acquired frame to s.
func WithSnapshot(s *thermal.Snapshot) func(*Loop) {
	return func(l *Loop) {
		l.snapshot = s
	}
}

// New builds a loop that runs one cycle every interval.
func New(g GasReader, t FrameSource, hub Broadcaster, interval time.Duration, options ...func(*Loop)) *Loop {
	l := &Loop{
		gas:      g,
		thermal:  t,
		hub:      hub,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Tick runs one cycle: reap, gas, then thermal when a frame is ready. The gas
// message is always broadcast before the thermal message.
func (l *Loop) Tick() Result {
	start := time.Now()
	var res Result

	res.Reaped = l.hub.Reap()

	l.setState(Sampling)
	res.Gas = l.gas.Read()

	l.setState(Encoding)
	payload := telemetry.Encode(telemetry.GasMessage(res.Gas))

	l.setState(Broadcasting)
	res.GasDelivered = l.hub.Broadcast(payload)
	metrics.MessagesSent.WithLabelValues(string(telemetry.KindGas)).Add(float64(res.GasDelivered))

	l.setState(Sampling)
	frame, ok := l.thermal.Acquire()
	if ok {
		l.thermalOK.Add(1)
		if l.snapshot != nil {
			l.snapshot.Store(frame)
		}

		l.setState(Encoding)
		payload = telemetry.Encode(telemetry.ThermalMessage(&frame))

		l.setState(Broadcasting)
		res.ThermalOK = true
		res.ThermalDelivered = l.hub.Broadcast(payload)
		metrics.MessagesSent.WithLabelValues(string(telemetry.KindThermal)).Add(float64(res.ThermalDelivered))
	} else {
		l.thermalFailed.Add(1)
		metrics.ThermalFailures.Inc()
	}

	l.setState(Idle)

	l.mu.Lock()
	l.lastGas = res.Gas
	l.lastCycle = start
	l.mu.Unlock()

	l.cycles.Add(1)
	metrics.Cycles.Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	return res
}

// Run ticks, then sleeps for the interval, until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("sample loop started", "interval", l.interval)
	defer l.logger.Info("sample loop stopped", "cycles", l.cycles.Load())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		res := l.Tick()
		if res.Reaped > 0 {
			l.logger.Debug("observers reaped", "count", res.Reaped)
		}

		timer.Reset(l.interval)
	}
}

// State reports the current cycle phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns the cycle counters and the last gas reading.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	lastGas, lastCycle := l.lastGas, l.lastCycle
	l.mu.Unlock()

	return Stats{
		State:         l.State(),
		Cycles:        l.cycles.Load(),
		ThermalOK:     l.thermalOK.Load(),
		ThermalFailed: l.thermalFailed.Load(),
		LastGas:       lastGas,
		LastCycle:     lastCycle,
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Handle stands in for a loop that is built later, once the sensors are up.
// Until Set is called Stats reports the Starting state with zero counters.
type Handle struct {
	loop atomic.Pointer[Loop]
}

// Set publishes l to readers of the handle.
func (h *Handle) Set(l *Loop) {
	h.loop.Store(l)
}

// Stats returns the running loop's stats, or a Starting placeholder.
func (h *Handle) Stats() Stats {
	if l := h.loop.Load(); l != nil {
		return l.Stats()
	}
	return Stats{State: Starting}
}
