// Package telemetry encodes sensor readings and fans them out to observers.
//
// The Hub owns the observer set. The sampling loop is the only caller of
// Broadcast and Reap; HTTP upgrade handlers call Register from their own
// goroutines, so membership is guarded by a mutex. Delivery is best-effort and
// independent per observer: Send must never block, and an observer whose Send
// fails is marked dead and removed by the next Reap.
//
// Wire format, one JSON text message per reading:
//
//	{"type":"gas","mq135_pct":12.3,"mq9_pct":45.6}
//	{"type":"thermal","data":[22.1,22.3,...]}
package telemetry
