package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	var area string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild an area's shard from the backing store",
		Long: `Rebuild drops the area's shard files and recreates them from every
decision detected in that area. Use after corruption, an embedding
model change, or when incremental drift has grown too large.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.indexer.FullRebuild(ctx, area)
			if err != nil {
				return err
			}

			fmt.Printf("Rebuilt shard %q with %d decisions\n", area, result.Added)
			return nil
		},
	}

	cmd.Flags().StringVar(&area, "area", "", "Legal area to rebuild (required)")
	_ = cmd.MarkFlagRequired("area")

	return cmd
}
