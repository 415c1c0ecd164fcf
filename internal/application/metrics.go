package application

import "time"

// Metrics receives the service events worth counting. internal/metrics
// provides the Prometheus implementation.
type Metrics interface {
	// AssignAttempt records one ledger write; outcome is "ok" or an ErrorKind label.
	AssignAttempt(source, outcome string)
	// LockWait records how long a writer waited for a room.
	LockWait(d time.Duration)
	// PlannerRun records a finished auto-assign run.
	PlannerRun(strategy string, assigned, skipped int, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) AssignAttempt(string, string)               {}
func (nopMetrics) LockWait(time.Duration)                     {}
func (nopMetrics) PlannerRun(string, int, int, time.Duration) {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
