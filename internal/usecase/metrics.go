package usecase

import "time"

// Outcomes recorded for insight operations
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
)

// MetricsRecorder receives engine measurements. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	ObserveInsight(operation, outcome string, elapsed time.Duration)
	ObserveNarrative(source string, degraded bool)
	ObserveLocationCache(hit bool)
	ObserveDatasetError()
}

type noopMetrics struct{}

func (noopMetrics) ObserveInsight(string, string, time.Duration) {}
func (noopMetrics) ObserveNarrative(string, bool)                {}
func (noopMetrics) ObserveLocationCache(bool)                    {}
func (noopMetrics) ObserveDatasetError()                         {}
