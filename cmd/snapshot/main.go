package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/dashboard"
	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/server"
	"github.com/leappulse/pulse/internal/sources"
	"github.com/leappulse/pulse/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sourceFlag string
	jsonOutput bool
	limit      int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch one dashboard snapshot and print it",
	Long: `snapshot builds the dashboard controller from the service environment,
runs one refresh against the chosen data source and prints the triaged result.

Example usage:
  snapshot                     # Use DATA_SOURCE from the environment
  snapshot --source live       # Query the live origins
  snapshot --source mock --json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&sourceFlag, "source", "s", "", "data source to query: mock or live (default DATA_SOURCE)")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the snapshot as JSON")
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of mentions to print")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	logrus.SetLevel(logrus.WarnLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	raw := cfg.DataSource
	if sourceFlag != "" {
		raw = sourceFlag
	}
	source, ok := models.ParseDataSource(raw)
	if !ok {
		return fmt.Errorf("%w: %q", dashboard.ErrUnknownSource, raw)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RefreshTimeout)
	defer cancel()

	normalize := sources.NormalizeOptions{PriorityMode: cfg.PriorityMode}
	opts := dashboard.Options{
		Primary:        sources.NewAPIOrigin(cfg.APIBaseURL, cfg.APITimeout, normalize),
		RefreshTimeout: cfg.RefreshTimeout,
	}
	if source == models.SourceLive && cfg.DatabaseURL != "" {
		pool, err := storage.NewPostgresPool(ctx, cfg.DatabaseURL, storage.PoolConfig{MaxConns: 2})
		if err != nil {
			logrus.Warnf("Realtime database unavailable: %v", err)
		} else {
			defer pool.Close()
			opts.Secondary = sources.NewDatabaseOrigin(pool, cfg.DatabaseSchema, normalize)
		}
	}

	controller := dashboard.NewController(opts)
	defer controller.Close()

	snap, err := controller.Start(ctx, source)
	if err != nil {
		return err
	}

	view := server.NewSnapshotView(snap)
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	printReport(cmd.OutOrStdout(), cfg.BrandName, view, limit)
	return nil
}
