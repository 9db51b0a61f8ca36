// Package metrics provides observability hooks for the update daemon.
// Components receive a Recorder through dependency injection; the default
// NoopRecorder keeps metric collection optional with zero overhead.
package metrics

import "time"

// Recorder defines observability hooks for check cycles and transactions.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	IncCheck(component string)
	IncUpdate(component string)
	IncFailure(component string)
	IncResolution(repo string, found bool)
	ObserveCycleDuration(d time.Duration)
	SetComponentsTracked(n int)
	SetUpdatesAvailable(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncCheck(string)                    {}
func (NoopRecorder) IncUpdate(string)                   {}
func (NoopRecorder) IncFailure(string)                  {}
func (NoopRecorder) IncResolution(string, bool)         {}
func (NoopRecorder) ObserveCycleDuration(time.Duration) {}
func (NoopRecorder) SetComponentsTracked(int)           {}
func (NoopRecorder) SetUpdatesAvailable(int)            {}
