// Package metrics records service metrics for the HTTP server.
package metrics

import "time"

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram records a value in a histogram metric.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge records a gauge metric value.
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer starts a timer for measuring duration.
	StartTimer() Timer
}

// Timer represents a timing measurement.
type Timer interface {
	// Stop returns the elapsed time in seconds.
	Stop() float64
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

// NewNoOpCollector creates a new no-op collector.
func NewNoOpCollector() Collector {
	return NoOpCollector{}
}

func (NoOpCollector) IncrementCounter(string, ...string) {}

func (NoOpCollector) RecordHistogram(string, float64, ...string) {}

func (NoOpCollector) RecordGauge(string, float64, ...string) {}

func (NoOpCollector) StartTimer() Timer { return newTimer() }

type timer struct {
	start time.Time
}

func newTimer() *timer {
	return &timer{start: time.Now()}
}

func (t *timer) Stop() float64 {
	return time.Since(t.start).Seconds()
}
