package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeResults_DedupKeepsMaxScore(t *testing.T) {
	merged := mergeResults([]SearchResult{
		{DecisionID: 1, Score: 0.7, Origin: OriginShard},
		{DecisionID: 2, Score: 0.8, Origin: OriginShard},
		{DecisionID: 1, Score: 0.9, Origin: OriginLive},
	}, 10)

	require.Len(t, merged, 2)
	assert.Equal(t, int64(1), merged[0].DecisionID)
	assert.Equal(t, 0.9, merged[0].Score)
	assert.Equal(t, OriginLive, merged[0].Origin)
}

func TestMergeResults_SortedDescending(t *testing.T) {
	merged := mergeResults([]SearchResult{
		{DecisionID: 1, Score: 0.2},
		{DecisionID: 2, Score: 0.9},
		{DecisionID: 3, Score: 0.5},
	}, 10)

	require.Len(t, merged, 3)
	for i := 1; i < len(merged); i++ {
		assert.GreaterOrEqual(t, merged[i-1].Score, merged[i].Score)
	}
}

func TestMergeResults_TieShardBeforeLive(t *testing.T) {
	merged := mergeResults([]SearchResult{
		{DecisionID: 1, Score: 0.5, Origin: OriginLive},
		{DecisionID: 2, Score: 0.5, Origin: OriginShard},
	}, 10)

	require.Len(t, merged, 2)
	assert.Equal(t, OriginShard, merged[0].Origin)
	assert.Equal(t, OriginLive, merged[1].Origin)
}

func TestMergeResults_Truncates(t *testing.T) {
	input := []SearchResult{
		{DecisionID: 1, Score: 0.9},
		{DecisionID: 2, Score: 0.8},
		{DecisionID: 3, Score: 0.7},
	}

	assert.Len(t, mergeResults(input, 2), 2)
	assert.Empty(t, mergeResults(input, 0))
	assert.Len(t, mergeResults(input, 5), 3)
}

func TestMergeResults_StableForEqualScoreAndOrigin(t *testing.T) {
	merged := mergeResults([]SearchResult{
		{DecisionID: 10, Score: 0.5, Origin: OriginShard},
		{DecisionID: 20, Score: 0.5, Origin: OriginShard},
	}, 10)

	require.Len(t, merged, 2)
	assert.Equal(t, int64(10), merged[0].DecisionID)
	assert.Equal(t, int64(20), merged[1].DecisionID)
}
