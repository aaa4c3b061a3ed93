// Package metrics exposes Prometheus collectors for workflow activity.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "westbay"

// Metrics groups the collectors updated by the workflow graph and the I/O
// boundary. A nil *Metrics is valid and records nothing.
type Metrics struct {
	nodeDuration *prometheus.HistogramVec
	roleFailures *prometheus.CounterVec
	workflowRuns *prometheus.CounterVec
	retries      *prometheus.CounterVec
	active       prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global Prometheus
// registry. Collectors are created once.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers the collectors with reg and panics on a registration
// conflict that cannot be resolved by reusing an existing collector.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		nodeDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "node_duration_seconds",
				Help:      "Time spent executing each workflow graph node.",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"node", "outcome"},
		)),
		roleFailures: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "role_failures_total",
				Help:      "Role executions that recorded an error.",
			},
			[]string{"role", "kind"},
		)),
		workflowRuns: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Workflow runs that reached a terminal status.",
			},
			[]string{"status"},
		)),
		retries: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "retries_total",
				Help:      "Retried external calls by target.",
			},
			[]string{"target"},
		)),
		active: register(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "active_runs",
				Help:      "Workflow runs currently executing.",
			},
		)),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveNode records how long a node took and how it ended.
func (m *Metrics) ObserveNode(node, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node, outcome).Observe(d.Seconds())
}

// IncRoleFailure counts an error recorded for role.
func (m *Metrics) IncRoleFailure(role, kind string) {
	if m == nil {
		return
	}
	m.roleFailures.WithLabelValues(role, kind).Inc()
}

// IncWorkflowRun counts a run reaching a terminal status.
func (m *Metrics) IncWorkflowRun(status string) {
	if m == nil {
		return
	}
	m.workflowRuns.WithLabelValues(status).Inc()
}

// IncRetry counts a retried call to target.
func (m *Metrics) IncRetry(target string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(target).Inc()
}

// RunStarted and RunFinished track the number of executing runs.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.active.Dec()
}
