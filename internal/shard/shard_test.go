package shard

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisearch/jurisearch/internal/embed"
	jerrors "github.com/jurisearch/jurisearch/internal/errors"
)

// embedTexts produces deterministic vectors for test decisions.
func embedTexts(t *testing.T, texts ...string) [][]float32 {
	t.Helper()
	e := embed.NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	return vecs
}

func testMetas(ids ...int64) []DecisionMeta {
	metas := make([]DecisionMeta, len(ids))
	for i, id := range ids {
		metas[i] = DecisionMeta{
			DecisionID: id,
			Court:      "District Court",
			Date:       "2024-03-15",
			Snippet:    "snippet",
		}
	}
	return metas
}

func TestShard_AppendSearchRoundtrip(t *testing.T) {
	s := newShard("family_law")

	vecs := embedTexts(t,
		"custody of minor children after divorce",
		"division of marital property",
		"zoning rules for commercial parcels",
	)
	require.NoError(t, s.Append(testMetas(101, 102, 103), vecs))
	require.Equal(t, 3, s.Len())

	query := embedTexts(t, "child custody arrangements")[0]
	hits, err := s.Search(query, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, int64(101), hits[0].Meta.DecisionID)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestShard_SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := newShard("contract_law")

	vecs := embedTexts(t, "breach of a supply agreement", "liquidated damages clause")
	require.NoError(t, s.Append(testMetas(201, 202), vecs))
	require.NoError(t, s.Save(dir))

	loaded, err := loadShard(dir, "contract_law")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.True(t, loaded.Contains(201))
	assert.True(t, loaded.Contains(202))
	assert.Equal(t, []int64{201, 202}, loaded.DecisionIDs())

	query := embedTexts(t, "damages for breach")[0]
	hits, err := loaded.Search(query, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestShard_ReappendSupersedes(t *testing.T) {
	s := newShard("labor_law")

	vecs := embedTexts(t, "wrongful dismissal")
	require.NoError(t, s.Append(testMetas(301), vecs))

	updated := testMetas(301)
	updated[0].Snippet = "updated snippet"
	require.NoError(t, s.Append(updated, embedTexts(t, "wrongful dismissal with severance")))

	// The old ordinal stays behind as an orphan; only the new entry is live.
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.graph.Len())
	assert.Equal(t, []int64{301}, s.DecisionIDs())

	hits, err := s.Search(embedTexts(t, "dismissal")[0], 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated snippet", hits[0].Meta.Snippet)
}

func TestShard_ReappendSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	s := newShard("labor_law")

	require.NoError(t, s.Append(testMetas(301), embedTexts(t, "wrongful dismissal")))

	updated := testMetas(301)
	updated[0].Snippet = "updated snippet"
	require.NoError(t, s.Append(updated, embedTexts(t, "wrongful dismissal with severance")))
	require.NoError(t, s.Save(dir))

	loaded, err := loadShard(dir, "labor_law")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, []int64{301}, loaded.DecisionIDs())

	hits, err := loaded.Search(embedTexts(t, "dismissal")[0], 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated snippet", hits[0].Meta.Snippet)

	// A third append after reload keeps working off the reconstructed map.
	third := testMetas(301)
	third[0].Snippet = "third snippet"
	require.NoError(t, loaded.Append(third, embedTexts(t, "dismissal for cause")))
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, 3, loaded.graph.Len())
}

func TestShard_DimensionMismatch(t *testing.T) {
	s := newShard("criminal_law")
	require.NoError(t, s.Append(testMetas(401), [][]float32{{0.1, 0.2, 0.3}}))

	err := s.Append(testMetas(402), [][]float32{{0.1, 0.2}})
	require.Error(t, err)
	assert.Equal(t, jerrors.ErrCodeDimensionMismatch, jerrors.GetCode(err))

	_, err = s.Search([]float32{0.1}, 3)
	require.Error(t, err)
	assert.Equal(t, jerrors.ErrCodeDimensionMismatch, jerrors.GetCode(err))
}

func TestShard_EmptySearch(t *testing.T) {
	s := newShard("property_law")

	hits, err := s.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLoadShard_LegacyWrappedMapping(t *testing.T) {
	dir := t.TempDir()
	s := newShard("family_law")
	require.NoError(t, s.Append(testMetas(501, 502), embedTexts(t, "alimony award", "adoption order")))
	require.NoError(t, s.Save(dir))

	// Rewrite the mapping in the legacy wrapped shape.
	raw, err := os.ReadFile(mappingPath(dir, "family_law"))
	require.NoError(t, err)
	var metas []DecisionMeta
	require.NoError(t, json.Unmarshal(raw, &metas))
	wrapped, err := json.Marshal(map[string][]DecisionMeta{"metadata": metas})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mappingPath(dir, "family_law"), wrapped, 0o644))

	loaded, err := loadShard(dir, "family_law")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, []int64{501, 502}, loaded.DecisionIDs())
}

func TestLoadShard_NotFound(t *testing.T) {
	_, err := loadShard(t.TempDir(), "family_law")
	require.Error(t, err)
	assert.Equal(t, jerrors.ErrCodeShardNotFound, jerrors.GetCode(err))
}

func TestLoadShard_CountMismatchIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := newShard("family_law")
	require.NoError(t, s.Append(testMetas(601, 602), embedTexts(t, "custody", "divorce")))
	require.NoError(t, s.Save(dir))

	// Drop one metadata record so graph and mapping disagree.
	require.NoError(t, os.WriteFile(mappingPath(dir, "family_law"), []byte(`[{"decision_id":601}]`), 0o644))

	_, err := loadShard(dir, "family_law")
	require.Error(t, err)
	assert.Equal(t, jerrors.ErrCodeShardCorrupt, jerrors.GetCode(err))
}

func TestLoadShard_GarbageMappingIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(mappingPath(dir, "family_law"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(indexPath(dir, "family_law"), []byte("garbage"), 0o644))

	_, err := loadShard(dir, "family_law")
	require.Error(t, err)
	assert.Equal(t, jerrors.ErrCodeShardCorrupt, jerrors.GetCode(err))
}

func TestDecodeMetadata_BothShapes(t *testing.T) {
	bare := []byte(`[{"decision_id":1,"court":"c","date":"2024-01-01","snippet":"s"}]`)
	wrapped := []byte(`{"metadata":[{"decision_id":1,"court":"c","date":"2024-01-01","snippet":"s"}]}`)

	fromBare, err := decodeMetadata(bare)
	require.NoError(t, err)
	fromWrapped, err := decodeMetadata(wrapped)
	require.NoError(t, err)

	assert.Equal(t, fromBare, fromWrapped)

	_, err = decodeMetadata([]byte(`{"other":1}`))
	assert.Error(t, err)
}

func TestStore_SearchAbsentAreaIsEmpty(t *testing.T) {
	st, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	hits, err := st.Search("family_law", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_SearchCorruptAreaIsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(mappingPath(dir, "family_law"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(indexPath(dir, "family_law"), []byte("garbage"), 0o644))

	st, err := NewStore(dir, nil)
	require.NoError(t, err)

	hits, err := st.Search("family_law", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_AppendThenSearch(t *testing.T) {
	st, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	vecs := embedTexts(t, "eviction of a holdover tenant", "easement by necessity")
	require.NoError(t, st.Append("property_law", testMetas(701, 702), vecs))

	query := embedTexts(t, "tenant eviction")[0]
	hits, err := st.Search("property_law", query, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(701), hits[0].Meta.DecisionID)

	// Files exist on disk for a cold store.
	cold, err := NewStore(st.Dir(), nil)
	require.NoError(t, err)
	hits, err = cold.Search("property_law", query, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestStore_AreasAndStats(t *testing.T) {
	st, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, st.Append("family_law", testMetas(801), embedTexts(t, "custody")))
	require.NoError(t, st.Append("contract_law", testMetas(802), embedTexts(t, "breach")))

	areas, err := st.Areas()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"family_law", "contract_law"}, areas)

	stats, err := st.Stats("family_law")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Decisions)
	assert.Positive(t, stats.SizeBytes)
	assert.False(t, stats.BuiltAt.IsZero())
}

func TestStore_DropRemovesFiles(t *testing.T) {
	st, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, st.Append("family_law", testMetas(901), embedTexts(t, "custody")))
	require.NoError(t, st.Drop("family_law"))

	_, err = os.Stat(filepath.Join(st.Dir(), "index_family_law.hnsw"))
	assert.True(t, os.IsNotExist(err))

	hits, err := st.Search("family_law", embedTexts(t, "custody")[0], 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
