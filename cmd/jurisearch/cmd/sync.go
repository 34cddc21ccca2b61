package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Append decisions missing from their shards",
		Long: `Sync compares each area's shard membership against the backing store
and appends decisions that were classified but never indexed, repairing
drift left by interrupted indexing runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			added, err := app.indexer.Sync(ctx)
			if err != nil {
				return err
			}

			if len(added) == 0 {
				fmt.Println("Shards are in sync with the backing store.")
				return nil
			}
			for area, n := range added {
				fmt.Printf("%s: appended %d decisions\n", area, n)
			}
			return nil
		},
	}

	return cmd
}
