package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/mr1hm/school-finance/internal/config"
	"github.com/mr1hm/school-finance/internal/logging"
	"github.com/mr1hm/school-finance/internal/repository"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "school-finance",
	Short: "Student fee, payment and receipt tracking for a school bursary",
	// serve is the default when no subcommand is given
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		logging.Fatalf("%v", err)
	}
}

// loadConfig reads configuration and sets up logging for every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level)
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*repository.DB, error) {
	return repository.Open(ctx, repository.Options{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
}
