package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bajpainaman/Avalytics/internal/indexing/metrics"
)

var syncInterval time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Follow the chain head continuously",
	Long: `Sync first catches up from the checkpoint, then polls the chain head and
indexes new blocks as they arrive. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Metrics.Addr != "" {
			srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler()}
			go func() {
				log.Info("metrics listener started", "addr", cfg.Metrics.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics listener failed", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		interval := syncInterval
		if interval <= 0 {
			interval = cfg.Indexer.PollInterval
		}

		err = a.indexer.ContinuousSync(ctx, interval)
		if errors.Is(err, context.Canceled) {
			log.Info("sync stopped")
			return nil
		}
		return err
	},
}

func init() {
	syncCmd.Flags().DurationVar(&syncInterval, "interval", 0, "head poll interval (default from config)")
	rootCmd.AddCommand(syncCmd)
}
