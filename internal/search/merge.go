package search

import "sort"

// mergeResults deduplicates by decision ID keeping the highest-scoring
// instance, sorts descending by score, and truncates to k. The input
// order is the merge sequence; it decides ties. Shard-origin results
// sort before live-origin results at equal score.
func mergeResults(results []SearchResult, k int) []SearchResult {
	if k <= 0 {
		return []SearchResult{}
	}

	byID := make(map[int64]int, len(results))
	merged := make([]SearchResult, 0, len(results))

	for _, r := range results {
		idx, seen := byID[r.DecisionID]
		if !seen {
			byID[r.DecisionID] = len(merged)
			merged = append(merged, r)
			continue
		}
		if r.Score > merged[idx].Score {
			merged[idx] = r
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return originRank(merged[i].Origin) < originRank(merged[j].Origin)
	})

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

func originRank(o Origin) int {
	if o == OriginShard {
		return 0
	}
	return 1
}
