package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "attendancectl",
	Short: "Operate the rollcall attendance engine from the terminal",
	Long: `attendancectl mints access tokens, inspects session identifiers, and
runs exports and sheet syncs directly against the configured database.`,
	SilenceUsage: true,
}

var envFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(tokenCmd, sessionCmd, exportCmd, syncCmd)
}

func loadConfig() config.App {
	config.LoadDotEnv(envFile)
	return config.Load()
}

func newLogger(cfg config.App) *slog.Logger {
	return logging.New(os.Stderr, "text", cfg.LogLevel)
}

// withService opens the Postgres store and hands fn a service over it.
func withService(ctx context.Context, cfg config.App, log *slog.Logger, fn func(*attendance.Service) error) error {
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if db != nil {
		defer db.Close()
	}
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	return fn(attendance.NewService(attendance.NewRepository(db.Client), queue.NewMemoryBus(), nil, nil, log))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
