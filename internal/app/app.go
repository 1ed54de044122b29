// Package app provides the main application structure for donggle-bot.
// It wires the storage clients, the task scheduler and batcher, the Discord
// gateway with its connection monitor, the bot handlers and the ops HTTP
// server, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Hongsc0125/donggle-bot/internal/alerts"
	"github.com/Hongsc0125/donggle-bot/internal/app/builders"
	"github.com/Hongsc0125/donggle-bot/internal/bot"
	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/gateway"
	"github.com/Hongsc0125/donggle-bot/internal/httpserver"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/scheduler"
	"github.com/Hongsc0125/donggle-bot/internal/version"
)

// App represents the main application structure.
// It holds references to all major components and manages their lifecycle.
type App struct {
	// Configuration and core services
	config   *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry

	// Task execution
	observer  *scheduler.MultiObserver
	scheduler *scheduler.Scheduler
	batcher   *scheduler.Batcher

	// Storage
	stores *builders.Stores

	// Gateway
	session *discordgo.Session
	conn    *gateway.DiscordConn
	health  *gateway.HealthState
	monitor *gateway.Monitor

	// Features
	alerts *alerts.Scheduler
	bot    *bot.Bot
	ops    *httpserver.Server

	// Event handler removers, called on shutdown
	removers  []func()
	startedAt time.Time

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Thread-safety
	mu      sync.Mutex
	started bool
}

// New creates a new App instance with the provided configuration and logger.
// Components are created in Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Run initializes every component and blocks until ctx is cancelled, the
// connection monitor gives up or the ops server fails. Components are shut
// down before Run returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return errors.Join(err, a.Shutdown())
	}

	a.logger.Info("application is running",
		logger.Field{Key: "version", Value: version.Short()})

	g, gctx := errgroup.WithContext(a.ctx)
	g.Go(func() error {
		return a.monitor.Run(gctx)
	})
	if a.ops != nil {
		g.Go(func() error {
			return a.ops.Run(gctx)
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		a.logger.Error("application stopped with error", runErr)
	}
	return errors.Join(runErr, a.Shutdown())
}

// status feeds the /status command.
func (a *App) status() bot.Status {
	depth := make(map[scheduler.Priority]int, len(scheduler.Priorities()))
	for _, p := range scheduler.Priorities() {
		depth[p] = a.scheduler.QueueDepth(p)
	}

	registered := 0
	if a.alerts != nil {
		registered = a.alerts.Registered()
	}

	return bot.Status{
		Gateway:    a.health.Snapshot(),
		QueueDepth: depth,
		Pool:       a.scheduler.Metrics(),
		Alerts:     registered,
		Uptime:     time.Since(a.startedAt).Truncate(time.Second),
	}
}
