package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bajpainaman/Avalytics/internal/infra/storage/postgres"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print indexing coverage and wallet counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		st, err := db.Stats(ctx)
		if err != nil {
			return err
		}

		cp, _, err := postgres.NewCheckpointRepo(db).Get(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "transactions\t%d\n", st.Transactions)
		fmt.Fprintf(w, "wallets\t%d\n", st.Wallets)
		fmt.Fprintf(w, "whales\t%d\n", st.Whales)
		if st.MinBlock != nil && st.MaxBlock != nil {
			fmt.Fprintf(w, "block range\t[%d, %d]\n", *st.MinBlock, *st.MaxBlock)
		} else {
			fmt.Fprintf(w, "block range\t(empty)\n")
		}
		fmt.Fprintf(w, "checkpoint\t%d\n", cp)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
