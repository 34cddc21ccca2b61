package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jurisearch/jurisearch/internal/shard"
)

// engineStats is the aggregate view printed by the stats command.
type engineStats struct {
	Decisions    int            `json:"decisions"`
	Unclassified int            `json:"unclassified"`
	PerArea      map[string]int `json:"per_area"`
	Shards       []shard.Stats  `json:"shards"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show backing store and shard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			stats := engineStats{PerArea: make(map[string]int)}

			stats.Decisions, err = app.store.Count(ctx)
			if err != nil {
				return err
			}
			stats.Unclassified, err = app.store.CountUnclassified(ctx)
			if err != nil {
				return err
			}
			counts, err := app.store.CountByArea(ctx)
			if err != nil {
				return err
			}
			for area, n := range counts {
				if area != "" {
					stats.PerArea[area] = n
				}
			}

			areas, err := app.shards.Areas()
			if err != nil {
				return err
			}
			for _, area := range areas {
				s, err := app.shards.Stats(area)
				if err != nil {
					app.logger.Warn("shard stats unavailable", "area", area, "error", err)
					continue
				}
				stats.Shards = append(stats.Shards, s)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Printf("Decisions: %d (%d unclassified)\n", stats.Decisions, stats.Unclassified)
			for _, area := range app.cfg.AreaIDs() {
				if n, ok := stats.PerArea[area]; ok {
					fmt.Printf("  %-16s %d\n", area, n)
				}
			}
			fmt.Println("Shards:")
			if len(stats.Shards) == 0 {
				fmt.Println("  (none on disk)")
			}
			for _, s := range stats.Shards {
				fmt.Printf("  %-16s %6d decisions  %8d bytes  built %s\n",
					s.Area, s.Decisions, s.SizeBytes, s.BuiltAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print statistics as JSON")

	return cmd
}
