package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search court decisions with a free-text query",
		Long: `Search classifies the query into legal areas, runs shard and live
sub-searches for the detected areas, and prints a merged ranked list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			result, err := app.executor.Search(ctx, query, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if len(result.Results) == 0 {
				fmt.Println("No results.")
				fmt.Printf("Detected areas: %s\n", strings.Join(result.DetectedAreas, ", "))
				return nil
			}

			fmt.Printf("Detected areas: %s\n\n", strings.Join(result.DetectedAreas, ", "))
			for i, r := range result.Results {
				fmt.Printf("%2d. [%.3f] decision %d (%s, %s) via %s\n",
					i+1, r.Score, r.DecisionID, r.LegalArea, r.Date, r.Origin)
				if r.Snippet != "" {
					fmt.Printf("    %s\n", r.Snippet)
				}
			}
			fmt.Printf("\n%d results in %dms (%d sources ok, %d degraded)\n",
				len(result.Results), result.Stats.ElapsedMS,
				result.Stats.SourcesOK, result.Stats.SourcesFailed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "Maximum results (0 = configured default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	return cmd
}
