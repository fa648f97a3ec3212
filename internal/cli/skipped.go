package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	redisinfra "github.com/bajpainaman/Avalytics/internal/infra/redis"
)

var skippedCmd = &cobra.Command{
	Use:   "retry-skipped",
	Short: "Re-index heights that were skipped in earlier runs",
	Long: `Retry-skipped drains the recorded skipped-height queue, fewest attempts
first. Heights that index cleanly are removed; heights that fail again stay
queued with a bumped attempt count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("retry-skipped requires a redis address in the config")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.redis == nil {
			return fmt.Errorf("redis unreachable")
		}

		queue := redisinfra.NewSkippedQueue(a.redis)
		pending, err := queue.Count(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			fmt.Println("no skipped heights pending")
			return nil
		}
		log.Info("retrying skipped heights", "pending", pending)

		var recovered int64
		// One pass over the queue as it stood at startup; heights that fail
		// again are re-queued by the indexer and picked up next invocation.
		for i := int64(0); i < pending; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			entry, err := queue.Next(ctx)
			if err != nil {
				return err
			}
			if entry == nil {
				break
			}

			summary, err := a.indexer.IndexRange(ctx, entry.Height, entry.Height)
			if err != nil {
				return fmt.Errorf("retry height %d: %w", entry.Height, err)
			}
			if summary.BlocksProcessed == 0 {
				log.Warn("height still failing", "height", entry.Height, "attempts", entry.Attempts+1)
				continue
			}

			if err := queue.Remove(ctx, entry.Height); err != nil {
				log.Warn("failed to dequeue recovered height", "height", entry.Height, "error", err)
			}
			recovered++
		}

		fmt.Printf("recovered %d of %d skipped heights\n", recovered, pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(skippedCmd)
}
