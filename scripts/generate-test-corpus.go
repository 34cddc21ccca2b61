//go:build ignore

// Generates a synthetic decision corpus for load testing the indexer and
// search path.
// Usage: go run scripts/generate-test-corpus.go -decisions 5000 -db testdata/bench.db
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jurisearch/jurisearch/internal/store"
)

var (
	numDecisions = flag.Int("decisions", 5000, "Number of decisions to generate")
	dbPath       = flag.String("db", "testdata/bench.db", "SQLite database to write")
	seed         = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var courts = []string{
	"Supreme Court",
	"Court of Appeal",
	"District Court Amsterdam",
	"District Court Rotterdam",
	"Labor Tribunal",
}

// One summary template per legal area so the keyword classifier routes the
// generated corpus across every shard.
var summaries = []string{
	"Divorce proceedings concerning custody of two minor children and division of marital property. The court awarded joint custody and set child support at the statutory rate.",
	"Breach of a commercial supply contract. The buyer claims damages for late delivery; the seller invokes the penalty clause cap. Partial award with termination upheld.",
	"Summary dismissal of an employee for repeated unauthorized absence. The tribunal found the dismissal disproportionate and awarded severance pay plus unpaid overtime.",
	"Defendant convicted of fraud involving forged invoices. Sentence of eighteen months with six months suspended and probation conditions attached.",
	"Dispute over an easement of way across the neighbouring parcel. The deed established the servitude; the eviction claim against the tenant was dismissed.",
	"Request for revision of an administrative fine. The court considered the proportionality of the sanction and reduced it on general principles.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := run(rng); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(rng *rand.Rand) error {
	st, err := store.New(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	start := time.Now()

	batch := make([]store.Decision, 0, 500)
	for i := 0; i < *numDecisions; i++ {
		summary := summaries[rng.Intn(len(summaries))]
		batch = append(batch, store.Decision{
			ID:        int64(i + 1),
			Summary:   fmt.Sprintf("%s Case reference %04d/%d.", summary, rng.Intn(10000), 2000+rng.Intn(26)),
			FullText:  summary,
			Court:     courts[rng.Intn(len(courts))],
			DecidedAt: fmt.Sprintf("%04d-%02d-%02d", 2000+rng.Intn(26), 1+rng.Intn(12), 1+rng.Intn(28)),
		})

		if len(batch) == cap(batch) || i == *numDecisions-1 {
			if err := st.SaveDecisions(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	fmt.Printf("Generated %d decisions in %s at %s\n", *numDecisions, time.Since(start).Round(time.Millisecond), *dbPath)
	return nil
}
