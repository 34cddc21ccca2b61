package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDecisions(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.SaveDecisions(context.Background(), []Decision{
		{ID: 101, Summary: "custody of minor children", Court: "District Court", DecidedAt: "2024-01-10", DetectedArea: "family_law"},
		{ID: 102, Summary: "division of marital assets", Court: "Appeals Court", DecidedAt: "2024-02-20", DetectedArea: "family_law"},
		{ID: 103, Summary: "breach of a supply agreement", Court: "Commercial Court", DecidedAt: "2024-03-05", DetectedArea: "contract_law"},
		{ID: 104, Summary: "alimony recalculation", Court: "District Court", DecidedAt: "2024-03-15"},
	}))
}

func TestStore_SaveAndFetch(t *testing.T) {
	s := testStore(t)
	seedDecisions(t, s)

	ctx := context.Background()
	all, err := s.FetchDecisions(ctx, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)

	// Most recent first.
	assert.Equal(t, int64(104), all[0].ID)
	assert.Equal(t, int64(101), all[3].ID)
}

func TestStore_FetchByArea(t *testing.T) {
	s := testStore(t)
	seedDecisions(t, s)

	family, err := s.FetchDecisions(context.Background(), FetchOptions{Area: "family_law"})
	require.NoError(t, err)
	require.Len(t, family, 2)
	assert.Equal(t, int64(102), family[0].ID)
	assert.Equal(t, int64(101), family[1].ID)
}

func TestStore_FetchUnclassified(t *testing.T) {
	s := testStore(t)
	seedDecisions(t, s)

	ctx := context.Background()
	unclassified, err := s.FetchDecisions(ctx, FetchOptions{UnclassifiedOnly: true})
	require.NoError(t, err)
	require.Len(t, unclassified, 1)
	assert.Equal(t, int64(104), unclassified[0].ID)
	assert.Empty(t, unclassified[0].DetectedArea)

	n, err := s.CountUnclassified(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_LiveCandidatesIncludeUnclassified(t *testing.T) {
	s := testStore(t)
	seedDecisions(t, s)

	candidates, err := s.LiveCandidates(context.Background(), "family_law", 10)
	require.NoError(t, err)

	ids := make([]int64, len(candidates))
	for i, d := range candidates {
		ids[i] = d.ID
	}
	// Unclassified 104 rides along with the detected family_law rows.
	assert.Equal(t, []int64{104, 102, 101}, ids)
}

func TestStore_SetDetectedAreas(t *testing.T) {
	s := testStore(t)
	seedDecisions(t, s)

	ctx := context.Background()
	require.NoError(t, s.SetDetectedAreas(ctx, map[int64]string{104: "family_law"}))

	n, err := s.CountUnclassified(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := s.DecisionIDsByArea(ctx, "family_law")
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102, 104}, ids)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDecisions(ctx, []Decision{{ID: 1, Summary: "first", DecidedAt: "2024-01-01"}}))
	require.NoError(t, s.SaveDecisions(ctx, []Decision{{ID: 1, Summary: "second", DecidedAt: "2024-01-02"}}))

	all, err := s.FetchDecisions(ctx, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].Summary)
}

func TestStore_CountByArea(t *testing.T) {
	s := testStore(t)
	seedDecisions(t, s)

	counts, err := s.CountByArea(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts["family_law"])
	assert.Equal(t, 1, counts["contract_law"])
	assert.Equal(t, 1, counts[""])
}

func TestStore_EngineState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	value, err := s.GetState(ctx, "last_full_pass")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.SetState(ctx, "last_full_pass", "2024-03-15T10:00:00Z"))
	require.NoError(t, s.SetState(ctx, "last_full_pass", "2024-03-16T10:00:00Z"))

	value, err = s.GetState(ctx, "last_full_pass")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-16T10:00:00Z", value)
}

func TestDecision_Snippet(t *testing.T) {
	short := Decision{Summary: "short summary"}
	assert.Equal(t, "short summary", short.Snippet())

	long := Decision{Summary: strings.Repeat("a", 500)}
	assert.Len(t, long.Snippet(), snippetLength)
}

func TestStore_OnDiskRoundtrip(t *testing.T) {
	path := t.TempDir() + "/decisions.db"

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDecisions(context.Background(), []Decision{
		{ID: 7, Summary: "probation conditions", DecidedAt: "2024-04-01", DetectedArea: "criminal_law"},
	}))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	n, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
