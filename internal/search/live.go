package search

import (
	"context"
	"sort"

	"github.com/jurisearch/jurisearch/internal/embed"
	"github.com/jurisearch/jurisearch/internal/store"
)

// candidateFactor scales k into the number of backing-store candidates
// scored per live search.
const candidateFactor = 2

// LiveSearcher computes similarity on the fly against the backing store.
// It covers decisions not yet present in any shard: slower than shard
// search but always fresh. Intentionally a fallback, not the fast path.
type LiveSearcher struct {
	store    *store.Store
	embedder embed.Embedder
	minScore float64
}

// NewLiveSearcher creates a live-fallback searcher. minScore is the
// similarity floor on the unified [0,1] scale.
func NewLiveSearcher(st *store.Store, embedder embed.Embedder, minScore float64) *LiveSearcher {
	return &LiveSearcher{
		store:    st,
		embedder: embedder,
		minScore: minScore,
	}
}

// Search scores up to candidateFactor*k recent candidates for the area
// against the query vector and returns the top k above the similarity
// floor. Backing-store failures propagate; the caller escalates those.
func (l *LiveSearcher) Search(ctx context.Context, queryVec []float32, area string, k int) ([]SearchResult, error) {
	if k <= 0 || len(queryVec) == 0 {
		return []SearchResult{}, nil
	}

	candidates, err := l.store.LiveCandidates(ctx, area, candidateFactor*k)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	texts := make([]string, len(candidates))
	for i, d := range candidates {
		texts[i] = d.EmbeddingText()
	}

	vectors, err := l.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for i, d := range candidates {
		score := embed.CosineScore(queryVec, vectors[i])
		if score < l.minScore {
			continue
		}

		resultArea := d.DetectedArea
		if resultArea == "" {
			resultArea = area
		}
		results = append(results, SearchResult{
			DecisionID: d.ID,
			Score:      score,
			LegalArea:  resultArea,
			Court:      d.Court,
			Date:       d.DecidedAt,
			Snippet:    d.Snippet(),
			Origin:     OriginLive,
		})
	}

	// Stable: equal scores keep the most-recent-first candidate order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
