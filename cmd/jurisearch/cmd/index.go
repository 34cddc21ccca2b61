package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jurisearch/jurisearch/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	var (
		batchSize    int
		all          bool
		watch        bool
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Classify and index unprocessed decisions",
		Long: `Index runs one incremental pass: decisions without a detected legal
area are classified, embedded, and appended to the matching shard.
With --all, passes repeat until the backlog is drained. With --watch,
the indexer stays in the foreground and polls for new decisions until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if watch {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				runner := indexer.NewRunner(app.indexer, pollInterval)
				runner.Start(ctx)
				fmt.Println("Watching for unclassified decisions (ctrl-c to stop)...")
				return runner.Wait()
			}

			totalProcessed, totalAdded := 0, 0
			for {
				result, err := app.indexer.ClassifyAndIndex(ctx, batchSize)
				if err != nil {
					return err
				}
				totalProcessed += result.Processed
				totalAdded += result.Added

				if !all || result.Processed == 0 {
					break
				}
			}

			fmt.Printf("Indexed %d decisions (%d classified)\n", totalAdded, totalProcessed)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch", 0, "Decisions per pass (0 = configured default)")
	cmd.Flags().BoolVar(&all, "all", false, "Repeat passes until no unclassified decisions remain")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and poll for new decisions")
	cmd.Flags().DurationVar(&pollInterval, "poll", indexer.DefaultPollInterval, "Poll interval with --watch")

	return cmd
}
