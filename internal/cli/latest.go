package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var latestN uint64

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Index the most recent N blocks",
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

		summary, runErr := a.indexer.IndexLatest(ctx, latestN)
		printSummary(summary, runErr)
		return runErr
	},
}

func init() {
	latestCmd.Flags().Uint64VarP(&latestN, "blocks", "n", 1000, "number of trailing blocks to index")
	rootCmd.AddCommand(latestCmd)
}
