package loop

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-bot/telemetry/internal/gas"
	"github.com/argus-bot/telemetry/internal/telemetry"
	"github.com/argus-bot/telemetry/internal/thermal"
)

type fixedGas gas.Reading

func (f fixedGas) Read() gas.Reading { return gas.Reading(f) }

// scriptedFrames fails on the cycles listed in fail (1-based).
type scriptedFrames struct {
	mu    sync.Mutex
	polls int
	fail  map[int]bool
}

func (s *scriptedFrames) Acquire() (thermal.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	if s.fail[s.polls] {
		return thermal.Frame{}, false
	}
	var f thermal.Frame
	for i := range f {
		f[i] = float32(s.polls)
	}
	return f, true
}

type recorder struct {
	id string

	mu     sync.Mutex
	kinds  []string
	closed bool
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(payload []byte) error {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return telemetry.ErrObserverClosed
	}
	r.kinds = append(r.kinds, msg.Type)
	return nil
}

func (r *recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.kinds...)
}

func TestTickSendsGasBeforeThermal(t *testing.T) {
	hub := telemetry.NewHub()
	obs := &recorder{id: "a"}
	hub.Register(obs)

	l := New(fixedGas{MQ135Pct: 12.3, MQ9Pct: 45.6}, &scriptedFrames{}, hub, time.Millisecond)
	res := l.Tick()

	assert.Equal(t, []string{"gas", "thermal"}, obs.received())
	assert.Equal(t, 1, res.GasDelivered)
	assert.True(t, res.ThermalOK)
	assert.Equal(t, 1, res.ThermalDelivered)
	assert.Equal(t, gas.Reading{MQ135Pct: 12.3, MQ9Pct: 45.6}, res.Gas)
	assert.Equal(t, Idle, l.State())
}

func TestTickThermalFailureIsLive(t *testing.T) {
	hub := telemetry.NewHub()
	obs := &recorder{id: "a"}
	hub.Register(obs)

	frames := &scriptedFrames{fail: map[int]bool{1: true}}
	l := New(fixedGas{}, frames, hub, time.Millisecond)

	res := l.Tick()
	assert.False(t, res.ThermalOK)
	assert.Equal(t, []string{"gas"}, obs.received())

	res = l.Tick()
	assert.True(t, res.ThermalOK)
	assert.Equal(t, []string{"gas", "gas", "thermal"}, obs.received())

	stats := l.Stats()
	assert.Equal(t, uint64(2), stats.Cycles)
	assert.Equal(t, uint64(1), stats.ThermalOK)
	assert.Equal(t, uint64(1), stats.ThermalFailed)
}

func TestTickThreeObserversOneCloses(t *testing.T) {
	hub := telemetry.NewHub()
	a, b, c := &recorder{id: "a"}, &recorder{id: "b"}, &recorder{id: "c"}
	for _, o := range []*recorder{a, b, c} {
		require.True(t, hub.Register(o))
	}

	l := New(fixedGas{MQ135Pct: 1, MQ9Pct: 2}, &scriptedFrames{}, hub, time.Millisecond)

	l.Tick()
	for _, o := range []*recorder{a, b, c} {
		assert.Equal(t, []string{"gas", "thermal"}, o.received(), o.id)
	}

	_ = b.Close()

	res := l.Tick()
	assert.Equal(t, 1, res.Reaped)
	assert.Equal(t, 2, res.GasDelivered)
	assert.Equal(t, 2, res.ThermalDelivered)

	assert.Equal(t, []string{"gas", "thermal", "gas", "thermal"}, a.received())
	assert.Equal(t, []string{"gas", "thermal"}, b.received())
	assert.Equal(t, []string{"gas", "thermal", "gas", "thermal"}, c.received())
	assert.Equal(t, []string{"a", "c"}, hub.IDs())
}

func TestTickStoresSnapshot(t *testing.T) {
	var snap thermal.Snapshot
	frames := &scriptedFrames{fail: map[int]bool{2: true}}
	l := New(fixedGas{}, frames, telemetry.NewHub(), time.Millisecond, WithSnapshot(&snap))

	l.Tick()
	l.Tick()

	f, _, ok := snap.Load()
	require.True(t, ok)
	// the failed second poll leaves the first frame in place
	assert.Equal(t, float32(1), f[0])
}

func TestRunStopsOnCancel(t *testing.T) {
	hub := telemetry.NewHub()
	obs := &recorder{id: "a"}
	hub.Register(obs)

	l := New(fixedGas{}, &scriptedFrames{}, hub, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return l.Stats().Cycles >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	kinds := obs.received()
	require.NotEmpty(t, kinds)
	assert.Equal(t, "gas", kinds[0])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "sampling", Sampling.String())
	assert.Equal(t, "encoding", Encoding.String())
	assert.Equal(t, "broadcasting", Broadcasting.String())
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestHandleBeforeAndAfterSet(t *testing.T) {
	var h Handle
	stats := h.Stats()
	assert.Equal(t, Starting, stats.State)
	assert.Zero(t, stats.Cycles)

	hub := telemetry.NewHub()
	l := New(fixedGas{MQ135Pct: 1, MQ9Pct: 2}, &scriptedFrames{}, hub, time.Second)
	h.Set(l)
	l.Tick()

	stats = h.Stats()
	assert.Equal(t, Idle, stats.State)
	assert.Equal(t, uint64(1), stats.Cycles)
	assert.Equal(t, uint64(1), stats.ThermalOK)
}
