package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

const (
	defaultConfigPath = "./config.toml"
	defaultEnvPath    = "./.env"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "donggle",
	Short: "Donggle - Discord community bot",
	Long: `Donggle is a Discord bot for game guilds: party recruitment, member
verification, scheduled alerts, link reports and temporary voice rooms.
Slow work runs on a priority task scheduler.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads the optional .env file and the TOML config. Validation is
// left to the caller.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadEnvOptional(defaultEnvPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// validConfig loads the config and joins every validation error into one.
func validConfig(path string) (*config.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, validationError(errs)
	}
	return cfg, nil
}

type validationError []error

func (e validationError) Error() string {
	msg := fmt.Sprintf("configuration validation failed (%d errors):", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

func newLogger(c config.LoggingConfig) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}
