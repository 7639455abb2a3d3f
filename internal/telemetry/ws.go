package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/argus-bot/telemetry/internal/config"
	"github.com/argus-bot/telemetry/internal/metrics"
)

// maxInbound caps frames read from observers. Inbound traffic is discarded.
const maxInbound = 4096

// WSObserver delivers payloads to one WebSocket client. Send enqueues into a
// bounded buffer drained by a writer goroutine; a full buffer drops the
// payload for this client only.
type WSObserver struct {
	id     string
	conn   *websocket.Conn
	queue  chan []byte
	cfg    config.BroadcastConfig
	logger *slog.Logger

	onDisconnect func(id string)

	dropped atomic.Int64 // consecutive drops
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// WithObserverLogger sets the logger for write and read failures.
func WithObserverLogger(logger *slog.Logger) func(*WSObserver) {
	return func(w *WSObserver) {
		w.logger = logger
	}
}

// OnDisconnect registers fn to run once the read side of the connection ends,
// whether the peer went away or the observer was closed locally.
func OnDisconnect(fn func(id string)) func(*WSObserver) {
	return func(w *WSObserver) {
		w.onDisconnect = fn
	}
}

// NewWSObserver takes ownership of conn and starts its reader and writer.
func NewWSObserver(id string, conn *websocket.Conn, cfg config.BroadcastConfig, options ...func(*WSObserver)) *WSObserver {
	w := &WSObserver{
		id:     id,
		conn:   conn,
		queue:  make(chan []byte, cfg.SendBuffer),
		cfg:    cfg,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, option := range options {
		option(w)
	}
	w.logger = w.logger.With("observer", id)

	w.wg.Add(2)
	go w.writePump()
	go w.readPump()

	return w
}

// ID returns the identifier assigned at upgrade.
func (w *WSObserver) ID() string { return w.id }

// Send queues payload for the writer. A full queue drops payload and counts
// toward MaxDropped; it never blocks.
func (w *WSObserver) Send(payload []byte) error {
	select {
	case <-w.done:
		return ErrObserverClosed
	default:
	}

	select {
	case w.queue <- payload:
		w.dropped.Store(0)
		return nil
	default:
	}

	metrics.SendDrops.Inc()
	n := w.dropped.Add(1)
	if w.cfg.MaxDropped > 0 && n >= int64(w.cfg.MaxDropped) {
		return fmt.Errorf("%w: %d consecutive drops", ErrObserverStalled, n)
	}
	return nil
}

// Closed reports whether either pump has stopped.
func (w *WSObserver) Closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Close signals both pumps to stop and returns without waiting; the writer
// sends a close frame within WriteTimeout. Safe to call more than once.
func (w *WSObserver) Close() error {
	w.shutdown()
	return nil
}

// Wait blocks until both pumps have exited.
func (w *WSObserver) Wait() {
	w.wg.Wait()
}

func (w *WSObserver) shutdown() {
	w.once.Do(func() { close(w.done) })
}

func (w *WSObserver) writePump() {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		w.shutdown()
		_ = w.conn.Close()
		w.wg.Done()
	}()

	for {
		select {
		case <-w.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.cfg.WriteTimeout))
			return

		case payload := <-w.queue:
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				w.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// readPump keeps the read side serviced so control frames are processed and
// a dead peer is noticed. Data frames are dropped.
func (w *WSObserver) readPump() {
	defer func() {
		w.shutdown()
		if w.onDisconnect != nil {
			w.onDisconnect(w.id)
		}
		w.wg.Done()
	}()

	pongWait := 2 * w.cfg.PingInterval
	w.conn.SetReadLimit(maxInbound)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Debug("connection lost", "error", err)
			}
			return
		}
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		w.logger.Debug("inbound message ignored", "bytes", len(data))
	}
}
