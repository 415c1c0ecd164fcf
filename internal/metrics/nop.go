// Package metrics provides the collectors the housing services report to.
package metrics

import (
	"time"

	"github.com/example/housing-allocator/internal/application"
)

// NopMetrics discards every observation. Useful for tests and for the CLI
// commands that never expose /metrics.
type NopMetrics struct{}

var _ application.Metrics = (*NopMetrics)(nil)

// NewNop creates a new no-op collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// AssignAttempt discards the assignment outcome.
func (n *NopMetrics) AssignAttempt(_ /* source */, _ /* outcome */ string) {}

// LockWait discards the lock wait.
func (n *NopMetrics) LockWait(_ time.Duration) {}

// PlannerRun discards the planner run.
func (n *NopMetrics) PlannerRun(
	_ /* strategy */ string,
	_ /* assigned */, _ /* skipped */ int,
	_ time.Duration,
) {
}
