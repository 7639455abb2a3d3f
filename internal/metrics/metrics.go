// Package metrics holds the Prometheus collectors for the broadcaster.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Hub metrics
	Observers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "argus_observers",
		Help: "Number of registered observers",
	})
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argus_messages_sent_total",
		Help: "Messages handed to observers, by message kind",
	}, []string{"kind"})
	SendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_send_failures_total",
		Help: "Observer sends that failed and marked the observer dead",
	})
	SendDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_send_drops_total",
		Help: "Messages dropped because an observer queue was full",
	})
	ObserversReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_observers_reaped_total",
		Help: "Observers removed by the reaper",
	})

	// Loop metrics
	Cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_cycles_total",
		Help: "Completed broadcast cycles",
	})
	ThermalFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_thermal_failures_total",
		Help: "Cycles in which the thermal frame could not be acquired",
	})
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "argus_cycle_duration_seconds",
		Help:    "Time spent sampling, encoding and broadcasting one cycle",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
	})

	registerOnce sync.Once
)

func init() {
	Register()
}

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Observers,
			MessagesSent,
			SendFailures,
			SendDrops,
			ObserversReaped,
			Cycles,
			ThermalFailures,
			CycleDuration,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
