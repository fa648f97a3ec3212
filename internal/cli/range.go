package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	rangeStart uint64
	rangeEnd   uint64
)

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Index an explicit inclusive block range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rangeStart > rangeEnd {
			return fmt.Errorf("invalid range: start %d > end %d", rangeStart, rangeEnd)
		}

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

		summary, runErr := a.indexer.IndexRange(ctx, rangeStart, rangeEnd)
		printSummary(summary, runErr)
		return runErr
	},
}

func init() {
	rangeCmd.Flags().Uint64Var(&rangeStart, "start", 0, "first block of the range")
	rangeCmd.Flags().Uint64Var(&rangeEnd, "end", 0, "last block of the range (inclusive)")
	_ = rangeCmd.MarkFlagRequired("start")
	_ = rangeCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(rangeCmd)
}
