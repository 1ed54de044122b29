package scheduler

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task status label values.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusTimedOut  = "timed_out"
	statusDropped   = "dropped"
)

// PrometheusObserver exports task and batch outcomes as Prometheus metrics.
type PrometheusObserver struct {
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	batchFailures *prometheus.CounterVec
}

// NewPrometheusObserver registers the scheduler metrics on reg. A nil reg uses
// the default registerer.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusObserver{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of scheduled tasks by outcome",
			},
			[]string{"priority", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of executed tasks",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"priority"},
		),
		batchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_item_failures_total",
				Help:      "Total number of failed channel batch items",
			},
			[]string{"channel_id"},
		),
	}

	reg.MustRegister(m.tasksTotal, m.taskDuration, m.batchFailures)
	return m
}

func (m *PrometheusObserver) TaskSucceeded(t Task, d time.Duration) {
	m.tasksTotal.WithLabelValues(t.Priority.String(), statusSucceeded).Inc()
	m.taskDuration.WithLabelValues(t.Priority.String()).Observe(d.Seconds())
}

func (m *PrometheusObserver) TaskFailed(t Task, err error, d time.Duration) {
	status := statusFailed
	if errors.Is(err, ErrTaskTimeout) {
		status = statusTimedOut
	}
	m.tasksTotal.WithLabelValues(t.Priority.String(), status).Inc()
	m.taskDuration.WithLabelValues(t.Priority.String()).Observe(d.Seconds())
}

func (m *PrometheusObserver) TaskDropped(t Task, _ error) {
	m.tasksTotal.WithLabelValues(t.Priority.String(), statusDropped).Inc()
}

func (m *PrometheusObserver) BatchItemFailed(channelID string, _ error) {
	m.batchFailures.WithLabelValues(channelID).Inc()
}

// RegisterQueueDepth exports the depth of every tier of s as a gauge.
func RegisterQueueDepth(namespace string, reg prometheus.Registerer, s *Scheduler) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, p := range Priorities() {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "queue_depth",
				Help:        "Number of tasks waiting in a priority queue",
				ConstLabels: prometheus.Labels{"priority": p.String()},
			},
			func() float64 { return float64(s.QueueDepth(p)) },
		))
	}
}
