// Package cli wires configuration, storage, RPC and the orchestrator into
// the avalytics command surface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bajpainaman/Avalytics/internal/core/config"
	"github.com/bajpainaman/Avalytics/internal/indexing/indexer"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "avalytics",
	Short: "Avalanche C-Chain wallet indexer",
	Long: `Avalytics indexes C-Chain blocks and transactions into PostgreSQL,
building accumulating wallet profiles with checkpointed, resumable runs.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env, the YAML config, and builds the logger.
func loadConfig() (*config.AppConfig, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(log)

	return cfg, log, nil
}

// printSummary reports a run's outcome on completion or interruption.
func printSummary(s *indexer.Summary, runErr error) {
	if s == nil {
		return
	}
	fmt.Printf("\nRun %s  [%d, %d]\n", s.RunID, s.StartHeight, s.EndHeight)
	fmt.Printf("  blocks processed: %d (skipped %d)\n", s.BlocksProcessed, s.BlocksSkipped)
	fmt.Printf("  transactions:     %d\n", s.Transactions)
	fmt.Printf("  wallets touched:  %d\n", s.WalletsTouched)
	fmt.Printf("  elapsed:          %s\n", s.Elapsed.Round(time.Second))
	fmt.Printf("  last checkpoint:  %d\n", s.LastCheckpoint)
	if runErr != nil {
		fmt.Printf("  aborted:          %v\n", runErr)
		fmt.Printf("  resume from:      %d\n", s.LastCheckpoint+1)
	}
}
