package api

import (
	"bytes"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/argus-bot/telemetry/internal/loop"
	"github.com/argus-bot/telemetry/internal/metrics"
	"github.com/argus-bot/telemetry/internal/telemetry"
)

// Banner is served on the root path.
const Banner = "Argus Bot WebSocket Server"

// staleCycles is how many broadcast intervals may pass without a completed
// cycle before health reports degraded.
const staleCycles = 10

// RegisterRoutes registers every endpoint on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(s.cfg.WSPath, s.handleWS).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/thermal.png", s.handleThermalPNG).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Banner))
}

// handleWS upgrades the connection and registers it with the hub. On failure
// the upgrader has already written an HTTP error.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	s.logger.Debug("websocket upgraded", "observer", id, "remote", r.RemoteAddr)
	obs := telemetry.NewWSObserver(id, conn, s.broadcast,
		telemetry.WithObserverLogger(s.logger),
		telemetry.OnDisconnect(func(id string) { s.hub.Unregister(id) }))
	s.hub.Register(obs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.loop.Stats()

	sampling := stats.Cycles > 0 &&
		time.Since(stats.LastCycle) < staleCycles*s.broadcast.Interval+time.Second

	health := map[string]interface{}{
		"status":    "ok",
		"loop":      stats.State.String(),
		"uptimeSec": time.Since(s.startTime).Seconds(),
		"subsystems": map[string]bool{
			"sampling": sampling,
		},
	}

	if !sampling {
		message := "Sample loop has not completed a recent cycle"
		if stats.State == loop.Starting {
			message = "Waiting for thermal imager"
		}
		health["status"] = "degraded"
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED", message, health)
		return
	}
	WriteSuccess(w, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.loop.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	lastCycle := ""
	if !stats.LastCycle.IsZero() {
		lastCycle = stats.LastCycle.UTC().Format(time.RFC3339Nano)
	}

	WriteSuccess(w, map[string]interface{}{
		"observers": s.hub.Len(),
		"loop": map[string]interface{}{
			"state":      stats.State.String(),
			"cycles":     stats.Cycles,
			"lastCycle":  lastCycle,
			"intervalMs": s.broadcast.Interval.Milliseconds(),
		},
		"thermal": map[string]uint64{
			"acquired": stats.ThermalOK,
			"failed":   stats.ThermalFailed,
		},
		"gas": map[string]float64{
			"mq135_pct": stats.LastGas.MQ135Pct,
			"mq9_pct":   stats.LastGas.MQ9Pct,
		},
		"started":   humanize.Time(s.startTime),
		"heapInUse": humanize.Bytes(mem.HeapInuse),
	})
}

func (s *Server) handleThermalPNG(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil || s.renderer == nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Thermal snapshots are disabled", nil)
		return
	}

	frame, at, ok := s.snapshot.Load()
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "No thermal frame acquired yet", nil)
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, &frame); err != nil {
		s.logger.Error("thermal render failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to render thermal frame", nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	_, _ = w.Write(buf.Bytes())
}
