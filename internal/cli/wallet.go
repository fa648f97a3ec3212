package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bajpainaman/Avalytics/internal/infra/storage/postgres"
)

var walletCmd = &cobra.Command{
	Use:   "wallet <address>",
	Short: "Print the accumulated profile for one wallet",
	Args:  cobra.ExactArgs(1),
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

		p, err := postgres.NewWalletRepo(db).GetByAddress(ctx, strings.ToLower(args[0]))
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Println("wallet not found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "address\t%s\n", p.Address)
		fmt.Fprintf(w, "total txs\t%d\n", p.TotalTxs)
		fmt.Fprintf(w, "total volume (wei)\t%s\n", p.TotalVolumeWei)
		fmt.Fprintf(w, "first seen\t%s\n", p.FirstSeen.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "last active\t%s\n", p.LastActive.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "whale\t%t\n", p.IsWhale)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
}
