// Command codexctl drives the codex pipeline against a SQLite database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kittclouds/codexkitt/internal/aicontext"
	"github.com/kittclouds/codexkitt/internal/config"
	"github.com/kittclouds/codexkitt/internal/logger"
	"github.com/kittclouds/codexkitt/internal/mentions"
	"github.com/kittclouds/codexkitt/internal/store"
)

var version = "0.1.0-dev"

// app holds what every subcommand needs once the root pre-run has finished.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.SQLiteStore
	scans   *mentions.Service
	builder *aicontext.Builder
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "codexctl",
		Short:   "Scan manuscripts for codex mentions and assemble AI context",
		Version: version,
		Long: `codexctl keeps entity mention records in step with scenes and chat
messages, and renders the token-budgeted codex context that accompanies
an AI request.

Settings come from CODEX_* environment variables or a .env file.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides CODEX_DB_PATH)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load")

	rootCmd.AddCommand(
		newImportCmd(a),
		newScanCmd(a),
		newContextCmd(a),
		newRelatedCmd(a),
		newStatsCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStoreWithDSN(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}

	a.cfg = cfg
	a.log = log
	a.store = st
	a.scans = mentions.NewService(st,
		mentions.WithLogger(log.Named("mentions")),
		mentions.WithDebounce(cfg.ScanDebounce),
	)
	a.builder = aicontext.NewBuilder(st, cfg.Context(), aicontext.WithLogger(log.Named("aicontext")))
	log.Debug("database opened", zap.String("path", cfg.DBPath))
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.scans != nil {
		a.scans.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
