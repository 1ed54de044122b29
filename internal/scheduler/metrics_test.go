package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusObserver("donggle", reg)

	high := NewTask(PriorityHigh, "h", noop)
	low := NewTask(PriorityLow, "l", noop)

	m.TaskSucceeded(high, time.Millisecond)
	m.TaskSucceeded(high, time.Millisecond)
	m.TaskFailed(low, ErrTaskFailed, time.Second)
	m.TaskFailed(low, ErrTaskTimeout, time.Minute)
	m.TaskDropped(low, ErrSchedulerStopped)
	m.BatchItemFailed("c1", errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("high", statusSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("low", statusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("low", statusTimedOut)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("low", statusDropped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchFailures.WithLabelValues("c1")))
}

func TestRegisterQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(Config{}, nil, testLogger(t))
	RegisterQueueDepth("donggle", reg, s)

	s.Schedule(PriorityMedium, "a", noop)
	s.Schedule(PriorityMedium, "b", noop)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	depth := map[string]float64{}
	for _, metric := range families[0].GetMetric() {
		depth[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"high": 0, "medium": 2, "low": 0}, depth)

	s.Stop()
	assert.NoError(t, s.Drain(context.Background()))
}
