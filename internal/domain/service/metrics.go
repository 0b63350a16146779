package service

import (
	"time"
)

// Metrics records operational counters. Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveOperation records one engine operation and its outcome.
	ObserveOperation(op, result string, elapsed time.Duration)

	// ObserveRetry records an optimistic-concurrency retry.
	ObserveRetry(op string)

	// SessionOpened and SessionClosed track live sessions.
	SessionOpened()
	SessionClosed()

	// ObserveNotification records a push delivery outcome.
	ObserveNotification(kind, result string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, string, time.Duration) {}
func (NopMetrics) ObserveRetry(string)                            {}
func (NopMetrics) SessionOpened()                                 {}
func (NopMetrics) SessionClosed()                                 {}
func (NopMetrics) ObserveNotification(string, string)             {}
