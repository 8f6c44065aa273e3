// Package metrics provides the instrumentation surface of the request engine: a no-op
// default and a Prometheus-backed recorder.
package metrics

import "time"

// Outcome labels for request metrics.
const (
	OutcomeSuccess = "success"
	OutcomeCached  = "cached"
)

// Recorder defines the metrics surface used by the request engine.
type Recorder interface {
	IncRequest(method, outcome string)
	ObserveRequestSeconds(method, outcome string, seconds float64)
	IncRetry(method string)
	IncCache(hit bool)
}

type noopRecorder struct{}

func (noopRecorder) IncRequest(string, string)                     {}
func (noopRecorder) ObserveRequestSeconds(string, string, float64) {}
func (noopRecorder) IncRetry(string)                               {}
func (noopRecorder) IncCache(bool)                                 {}

// Noop returns a recorder that discards everything.
func Noop() Recorder {
	return noopRecorder{}
}

// TimeRequest starts a timer; the returned func records count and latency for the outcome.
func TimeRequest(r Recorder, method string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		r.IncRequest(method, outcome)
		r.ObserveRequestSeconds(method, outcome, time.Since(start).Seconds())
	}
}
