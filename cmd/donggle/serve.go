package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hongsc0125/donggle-bot/internal/app"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

var serveLogLevel string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bot (main command)",
	Long: `Connect to Discord and the storage backends, start the task scheduler
and serve interactions until SIGINT or SIGTERM. Queued tasks are drained
before exit.`,
	Args: cobra.NoArgs,
	RunE: serveHandler,
}

func serveHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return validationError(errs)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	log.Info("🚀 Starting donggle-bot",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "guilds", Value: len(cfg.Discord.GuildIDs)},
		logger.Field{Key: "metrics_addr", Value: cfg.Ops.MetricsAddr})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, log).Run(ctx); err != nil {
		log.Error("donggle-bot stopped with error", err)
		return err
	}

	log.Info("👋 donggle-bot stopped gracefully")
	return nil
}

func init() {
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
}
