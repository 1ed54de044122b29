package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Hongsc0125/donggle-bot/internal/alerts"
	"github.com/Hongsc0125/donggle-bot/internal/app/builders"
	"github.com/Hongsc0125/donggle-bot/internal/bot"
	"github.com/Hongsc0125/donggle-bot/internal/cache"
	"github.com/Hongsc0125/donggle-bot/internal/commands"
	"github.com/Hongsc0125/donggle-bot/internal/gateway"
	"github.com/Hongsc0125/donggle-bot/internal/httpserver"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/ranking"
	"github.com/Hongsc0125/donggle-bot/internal/reports"
	mongostore "github.com/Hongsc0125/donggle-bot/internal/store/mongo"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
	"github.com/Hongsc0125/donggle-bot/internal/summarizer"
)

// Initialize creates and starts every component in dependency order:
// stores, scheduler, batcher, discord session, monitor, bot, alerts and the
// ops HTTP server. On error the components created so far are left for
// Shutdown.
func (a *App) Initialize(ctx context.Context) error {
	// 1. Create application context
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.started = true
	a.startedAt = time.Now()
	a.mu.Unlock()

	// 2. Metrics registry
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. Storage
	stores, err := builders.NewStoresBuilder(a.config, a.logger).Build(a.ctx)
	if err != nil {
		return fmt.Errorf("failed to connect stores: %w", err)
	}
	a.stores = stores

	// 4. Scheduler. Workers outlive a.ctx so queued tasks can drain on
	// shutdown; Stop cancels them.
	workCtx := context.WithoutCancel(a.ctx)
	schedBuilder := builders.NewSchedulerBuilder(a.config, a.logger.Component("scheduler"), a.registry)
	a.observer = schedBuilder.Observer()
	a.scheduler = schedBuilder.Build(a.observer)
	if err := a.scheduler.Start(workCtx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// 5. Ops notifications. They are sent through the scheduler, so the
	// notifier joins the observer after the scheduler exists.
	notifier, err := builders.NewNotifierBuilder(a.config.Ops.Telegram, a.logger.Component("opsnotify")).Build(a.scheduler)
	if err != nil {
		return fmt.Errorf("failed to create ops notifier: %w", err)
	}
	if notifier != nil {
		a.observer.Add(notifier)
	}

	// 6. Batcher
	a.batcher = schedBuilder.BuildBatcher(a.observer)
	a.batcher.Start(workCtx)

	// 7. Discord session and connection monitor
	discord := builders.NewDiscordBuilder(a.config.Discord, a.logger)
	a.session, err = discord.Build()
	if err != nil {
		return err
	}
	a.conn = gateway.NewDiscordConn(a.session)
	a.health = gateway.NewHealthState(time.Now)

	reconnectObservers := gateway.ReconnectObservers{
		gateway.NewPrometheusObserver(a.config.Ops.Namespace, a.registry, a.health),
	}
	if notifier != nil {
		reconnectObservers = append(reconnectObservers, notifier)
	}
	a.monitor = gateway.NewMonitor(a.conn, a.health, builders.MonitorConfig(a.config.Monitor),
		reconnectObservers, a.logger.Component("monitor"))
	a.removers = append(a.removers, gateway.BindLifecycle(a.session, a.monitor))

	// 8. Features
	catalog, err := commands.Load()
	if err != nil {
		return fmt.Errorf("failed to load command catalog: %w", err)
	}

	db, mdb, rdb := a.stores.DB, a.stores.MongoDB, a.stores.Redis
	guilds := postgres.NewGuilds(db)
	outbox := bot.NewOutbox(a.session, guilds, a.logger.Component("outbox"))

	a.alerts, err = alerts.New(a.config.Alerts, postgres.NewAlerts(db), outbox, a.scheduler, a.logger.Component("alerts"))
	if err != nil {
		return fmt.Errorf("failed to create alert scheduler: %w", err)
	}

	reportBuilder := reports.NewBuilder(a.config.Reports,
		summarizer.NewClient(a.config.Summarizer, a.logger.Component("summarizer")),
		a.logger.Component("reports"))
	reportService := reports.NewService(reportBuilder, mongostore.NewReports(mdb), outbox, outbox,
		a.scheduler, a.logger.Component("reports"))

	a.bot, err = bot.New(a.ctx, bot.Deps{
		Session:      a.session,
		Roster:       bot.StateRoster{State: a.session.State},
		Dispatcher:   a.scheduler,
		Batcher:      a.batcher,
		Guilds:       guilds,
		Recruitments: postgres.NewRecruitments(db),
		Members:      mongostore.NewRecruitmentDocs(mdb),
		Auth:         mongostore.NewUserAuth(mdb),
		Cooldowns:    cache.NewCooldowns(rdb, a.config.Redis.KeyPrefix),
		TempChannels: cache.NewTempChannels(rdb, a.config.Redis.KeyPrefix),
		Ranking:      ranking.NewClient(a.config.Ranking, a.logger.Component("ranking")),
		Alerts:       a.alerts,
		Reports:      reportService,
		Status:       a.status,
		Cooldown:     a.config.Discord.Cooldown(),
	}, catalog, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	a.removers = append(a.removers, a.bot.Attach(a.session))

	// 9. Connect to the gateway
	if err := a.conn.Open(); err != nil {
		return err
	}
	a.logger.Info("discord session opened",
		logger.Field{Key: "intents", Value: int(builders.Intents)})

	if a.config.Discord.RegisterCommands {
		if err := discord.RegisterCommands(a.session, catalog); err != nil {
			return err
		}
	}

	// 10. Alerts
	if a.config.Alerts.Enabled {
		if err := a.alerts.Load(a.ctx); err != nil {
			return fmt.Errorf("failed to load alerts: %w", err)
		}
		if err := a.alerts.Start(); err != nil {
			return fmt.Errorf("failed to start alerts: %w", err)
		}
	}

	// 11. Ops HTTP server
	if a.config.Ops.MetricsAddr != "" {
		router := httpserver.NewRouter(a.health, a.stores.Checks(), a.registry, a.logger.Component("http"))
		a.ops = httpserver.New(a.config.Ops.MetricsAddr, router, a.logger.Component("http"))
	}

	return nil
}
