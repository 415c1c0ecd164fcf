package metrics

import (
	"sync"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements application.Metrics backed by Prometheus.
// Collectors are registered on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignAttempts *prometheus.CounterVec
	lockWait       prometheus.Histogram
	plannerRuns    *prometheus.CounterVec
	plannerBeds    *prometheus.CounterVec
	plannerLatency *prometheus.HistogramVec
}

var _ application.Metrics = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector. A nil registerer uses
// prometheus.DefaultRegisterer; an empty namespace uses "housing".
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "housing"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.assignAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "ledger",
			Name:      "assign_attempts_total",
			Help:      "Assignment writes by source (manual,auto) and outcome (ok or rejection kind).",
		}, []string{"source", "outcome"})

		p.lockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "ledger",
			Name:      "room_lock_wait_seconds",
			Help:      "Time writers waited for the per-room lock in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		})

		p.plannerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "runs_total",
			Help:      "Committed auto-assign runs by strategy.",
		}, []string{"strategy"})

		p.plannerBeds = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "beds_total",
			Help:      "Beds handled by auto-assign runs by strategy and result (assigned,skipped).",
		}, []string{"strategy", "result"})

		p.plannerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "planner",
			Name:      "run_duration_seconds",
			Help:      "Duration of auto-assign runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"strategy"})

		p.reg.MustRegister(p.assignAttempts)
		p.reg.MustRegister(p.lockWait)
		p.reg.MustRegister(p.plannerRuns)
		p.reg.MustRegister(p.plannerBeds)
		p.reg.MustRegister(p.plannerLatency)
	})
}

// AssignAttempt counts one ledger write.
func (p *PrometheusCollector) AssignAttempt(source, outcome string) {
	p.ensureRegistered()
	p.assignAttempts.WithLabelValues(source, outcome).Inc()
}

// LockWait observes how long a writer waited for a room.
func (p *PrometheusCollector) LockWait(d time.Duration) {
	p.ensureRegistered()
	p.lockWait.Observe(d.Seconds())
}

// PlannerRun records a finished auto-assign run.
func (p *PrometheusCollector) PlannerRun(strategy string, assigned, skipped int, d time.Duration) {
	p.ensureRegistered()
	p.plannerRuns.WithLabelValues(strategy).Inc()
	p.plannerBeds.WithLabelValues(strategy, "assigned").Add(float64(assigned))
	p.plannerBeds.WithLabelValues(strategy, "skipped").Add(float64(skipped))
	p.plannerLatency.WithLabelValues(strategy).Observe(d.Seconds())
}
