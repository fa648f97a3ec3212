package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resumeTarget uint64

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume indexing from the last checkpoint",
	Long: `Resume continues from the stored checkpoint up to the chain head, or up to
--target when given. A fresh database starts a lookback window below the
target instead of genesis.`,
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

		var target *uint64
		if cmd.Flags().Changed("target") {
			target = &resumeTarget
		}

		summary, runErr := a.indexer.Resume(ctx, target)
		printSummary(summary, runErr)
		return runErr
	},
}

func init() {
	resumeCmd.Flags().Uint64Var(&resumeTarget, "target", 0, "index up to this block instead of the chain head")
	rootCmd.AddCommand(resumeCmd)
}
