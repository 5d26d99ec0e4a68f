package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/app"
)

var (
	backfillFrom    string
	backfillTo      string
	backfillSources []string
	backfillDryRun  bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Store historical daily records in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}
		from, to, err := dayRange(backfillFrom, backfillTo)
		if err != nil {
			return err
		}

		opts := app.BackfillOptions{
			From:    from,
			To:      to,
			Sources: backfillSources,
			DryRun:  backfillDryRun,
		}
		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First day (inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last day (inclusive)")
	backfillCmd.Flags().StringSliceVar(&backfillSources, "source", nil, "Sources to backfill (defaults to every traffic and sales source)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing to storage")
}
