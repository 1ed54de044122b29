package builders

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
)

type SchedulerBuilder struct {
	config   *config.Config
	logger   *logger.Logger
	registry prometheus.Registerer
}

func NewSchedulerBuilder(cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) *SchedulerBuilder {
	return &SchedulerBuilder{config: cfg, logger: log, registry: reg}
}

// Observer returns the fan-out observer with Prometheus metrics attached.
// Further observers (ops notifier) are added once they exist.
func (b *SchedulerBuilder) Observer() *scheduler.MultiObserver {
	return scheduler.NewMultiObserver(scheduler.NewPrometheusObserver(b.config.Ops.Namespace, b.registry))
}

// Build creates the scheduler and exports its queue depths. It is not
// started.
func (b *SchedulerBuilder) Build(observer scheduler.Observer) *scheduler.Scheduler {
	s := scheduler.New(SchedulerConfig(b.config.Scheduler), observer, b.logger)
	scheduler.RegisterQueueDepth(b.config.Ops.Namespace, b.registry, s)
	return s
}

// BuildBatcher creates the channel batcher. It is not started.
func (b *SchedulerBuilder) BuildBatcher(observer scheduler.Observer) *scheduler.Batcher {
	return scheduler.NewBatcher(BatcherConfig(b.config.Batcher), observer, b.logger)
}

func SchedulerConfig(c config.SchedulerConfig) scheduler.Config {
	return scheduler.Config{
		Workers: scheduler.WorkerCounts{
			High:   c.HighWorkers,
			Medium: c.MediumWorkers,
			Low:    c.LowWorkers,
		},
		TaskTimeout: c.TaskTimeout(),
	}
}

func BatcherConfig(c config.BatcherConfig) scheduler.BatcherConfig {
	return scheduler.BatcherConfig{
		Threshold:     c.Threshold,
		SweepInterval: c.SweepInterval(),
	}
}
