// Package api serves the broadcast endpoint and the service's HTTP surface.
//
// Routes:
//
//	GET /                    plain-text banner
//	GET /ws                  WebSocket upgrade; the client becomes an observer
//	GET /api/v1/health       liveness of the sample loop
//	GET /api/v1/status       observer and loop counters
//	GET /api/v1/thermal.png  latest thermal frame as a heat map
//	GET /metrics             Prometheus exposition
//
// JSON endpoints use the envelope in response.go.
package api
