package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-bot/telemetry/internal/config"
)

func testBroadcastConfig() config.BroadcastConfig {
	cfg := config.LoadBaseline().Broadcast
	cfg.WriteTimeout = time.Second
	return cfg
}

// newWSServer upgrades every request and registers it with hub.
func newWSServer(t *testing.T, hub *Hub, options ...func(*WSObserver)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(NewWSObserver(r.URL.Query().Get("id"), conn, testBroadcastConfig(), options...))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWSObserverDelivers(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	conn := dial(t, srv, "one")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	payload := `{"type":"gas","mq135_pct":1.0,"mq9_pct":2.0}`
	assert.Equal(t, 1, hub.Broadcast([]byte(payload)))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, payload, string(data))
}

func TestWSObserverIgnoresInbound(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	conn := dial(t, srv, "chatty")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"forward"}`)))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, hub.Reap())
	assert.Equal(t, 1, hub.Broadcast([]byte("still here")))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "still here", string(data))
}

func TestWSObserverClientDisconnectIsReaped(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	keep := dial(t, srv, "keep")
	defer keep.Close()
	gone := dial(t, srv, "gone")
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	_ = gone.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = gone.Close()

	require.Eventually(t, func() bool { return hub.Reap() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"keep"}, hub.IDs())
}

func TestWSObserverClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	var mu sync.Mutex
	var disconnected []string
	srv := newWSServer(t, hub, OnDisconnect(func(id string) {
		mu.Lock()
		disconnected = append(disconnected, id)
		mu.Unlock()
		hub.Unregister(id)
	}))

	keep := dial(t, srv, "keep")
	defer keep.Close()
	gone := dial(t, srv, "gone")
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	_ = gone.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = gone.Close()

	// removed without waiting for a reap pass
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"keep"}, hub.IDs())
	assert.Equal(t, 0, hub.Reap())

	mu.Lock()
	assert.Equal(t, []string{"gone"}, disconnected)
	mu.Unlock()
}

func TestHubStopWaitsForWSObservers(t *testing.T) {
	hub := NewHub()
	var observers []*WSObserver
	var mu sync.Mutex
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		obs := NewWSObserver("stopping", conn, testBroadcastConfig())
		mu.Lock()
		observers = append(observers, obs)
		mu.Unlock()
		hub.Register(obs)
	}))
	defer srv.Close()

	conn := dial(t, srv, "stopping")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	// the client keeps reading so the close handshake completes
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hub.Stop()

	mu.Lock()
	obs := observers[0]
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		obs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("pumps still running after Stop returned")
	}
}

func TestWSObserverClose(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	conn := dial(t, srv, "closing")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, hub.Unregister("closing"))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWSObserverSendDropsWhenFull(t *testing.T) {
	w := &WSObserver{
		id:    "slow",
		queue: make(chan []byte, 1),
		cfg:   config.BroadcastConfig{MaxDropped: 2},
		done:  make(chan struct{}),
	}

	assert.NoError(t, w.Send([]byte("1")))
	assert.NoError(t, w.Send([]byte("2")))
	assert.ErrorIs(t, w.Send([]byte("3")), ErrObserverStalled)

	<-w.queue
	assert.NoError(t, w.Send([]byte("4")))
	assert.Equal(t, int64(0), w.dropped.Load())

	w.shutdown()
	assert.True(t, w.Closed())
	assert.ErrorIs(t, w.Send([]byte("5")), ErrObserverClosed)
}
