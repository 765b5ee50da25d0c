package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tripwindow/internal/config"
	"tripwindow/internal/db"
	"tripwindow/internal/logging"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tripwindow",
	Short: "Trip resolution and windowing for bus passenger events",
	Long: "tripwindow decides which trips a bus ran on a day, gives each a stable identifier and " +
		"an attribution window, and serves the passenger records that fall inside it.",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the history snapshotter",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables and indexes the service uses",
	RunE:  runMigrate,
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "run schema migrations before serving")
	rootCmd.AddCommand(serveCmd, migrateCmd, resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

// openDB connects to the configured database, applying DATABASE_NAME when set.
func openDB(ctx context.Context) (*sql.DB, error) {
	dsn, err := db.WithDBName(cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("compose DSN: %w", err)
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return sqlDB, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	sqlDB, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := db.Migrate(cmd.Context(), sqlDB); err != nil {
		return err
	}
	logger.Info().Msg("schema is up to date")
	return nil
}
