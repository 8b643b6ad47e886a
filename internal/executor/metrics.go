package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "serialbus"

// Metrics holds the Prometheus collectors an Executor reports into.
type Metrics struct {
	queueDepth prometheus.Gauge
	submitted  prometheus.Counter
	completed  *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the executor collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "queue_depth",
			Help:      "Tasks submitted but not yet started.",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted by the executor.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "tasks_completed_total",
			Help:      "Tasks that finished running, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "task_duration_seconds",
			Help:      "Wall time spent running a single task.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.queueDepth, m.submitted, m.completed, m.duration)
	}
	return m
}

// Submitted exposes the submission counter.
func (m *Metrics) Submitted() prometheus.Counter {
	return m.submitted
}

// QueueDepth exposes the queue depth gauge.
func (m *Metrics) QueueDepth() prometheus.Gauge {
	return m.queueDepth
}

func (m *Metrics) observeSubmit(pending int) {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.queueDepth.Set(float64(pending))
}

func (m *Metrics) observeStart(pending int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(pending))
}

func (m *Metrics) observeDone(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.completed.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}
