// Package shard manages the per-area vector indexes: an HNSW graph per
// legal area plus a JSON mapping file aligning graph keys with decision
// metadata. Shards are the fast path of hybrid search; the relational
// backing store covers what shards have not indexed yet.
package shard

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/coder/hnsw"

	jerrors "github.com/jurisearch/jurisearch/internal/errors"
)

// HNSW construction parameters, matched to the index build defaults.
const (
	graphM        = 16
	graphEfSearch = 20
	graphMl       = 0.25
)

// Hit is one nearest-neighbor match from a shard.
type Hit struct {
	Meta  DecisionMeta
	Score float64
}

// Shard is the in-memory form of one area index: the HNSW graph and the
// metadata records, aligned by graph key. Safe for concurrent reads;
// writes are serialized by the caller's area lock.
type Shard struct {
	area string

	mu    sync.RWMutex
	dims  int
	graph *hnsw.Graph[uint64]
	meta  []DecisionMeta
	ids   map[int64]uint64 // decision ID -> live graph key
}

// newGraph builds an empty cosine-distance graph.
func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = graphM
	g.EfSearch = graphEfSearch
	g.Ml = graphMl
	return g
}

// newShard creates an empty shard for the area.
func newShard(area string) *Shard {
	return &Shard{
		area:  area,
		graph: newGraph(),
		meta:  []DecisionMeta{},
		ids:   make(map[int64]uint64),
	}
}

// loadShard reads a shard from dir. Returns ShardNotFound when either
// file is absent and ShardCorrupt when graph and mapping disagree.
func loadShard(dir, area string) (*Shard, error) {
	metaData, err := os.ReadFile(mappingPath(dir, area))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jerrors.ShardNotFound(area)
		}
		if os.IsPermission(err) {
			return nil, jerrors.New(jerrors.ErrCodeShardPermission,
				fmt.Sprintf("cannot read mapping for area %q", area), err)
		}
		return nil, jerrors.Wrap(jerrors.ErrCodeShardCorrupt, err)
	}

	metas, err := decodeMetadata(metaData)
	if err != nil {
		return nil, jerrors.ShardCorrupt(area, fmt.Sprintf("mapping for area %q: %v", area, err))
	}

	file, err := os.Open(indexPath(dir, area))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jerrors.ShardNotFound(area)
		}
		if os.IsPermission(err) {
			return nil, jerrors.New(jerrors.ErrCodeShardPermission,
				fmt.Sprintf("cannot read index for area %q", area), err)
		}
		return nil, jerrors.Wrap(jerrors.ErrCodeShardCorrupt, err)
	}
	defer func() { _ = file.Close() }()

	graph := newGraph()
	// Import needs an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return nil, jerrors.ShardCorrupt(area, fmt.Sprintf("index for area %q: %v", area, err))
	}

	if graph.Len() != len(metas) {
		return nil, jerrors.ShardCorrupt(area,
			fmt.Sprintf("area %q has %d vectors but %d metadata records", area, graph.Len(), len(metas)))
	}

	s := &Shard{
		area:  area,
		graph: graph,
		meta:  metas,
		ids:   make(map[int64]uint64, len(metas)),
	}
	// Later duplicates win, reproducing the orphaned ordinals left by
	// re-appends.
	for i, m := range metas {
		s.ids[m.DecisionID] = uint64(i)
	}
	if len(metas) > 0 {
		if vec, ok := graph.Lookup(0); ok {
			s.dims = len(vec)
		}
	}
	return s, nil
}

// Area returns the shard's legal area.
func (s *Shard) Area() string {
	return s.area
}

// Len returns the number of live indexed decisions. Ordinals orphaned by
// a re-append are not counted.
func (s *Shard) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Contains reports whether the decision is indexed in this shard.
func (s *Shard) Contains(decisionID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[decisionID]
	return ok
}

// DecisionIDs returns the live decision IDs in insertion order, skipping
// ordinals orphaned by re-appends.
func (s *Shard) DecisionIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.ids))
	for i, m := range s.meta {
		if s.ids[m.DecisionID] == uint64(i) {
			ids = append(ids, m.DecisionID)
		}
	}
	return ids
}

// Append inserts decisions with their vectors, always under a fresh
// ordinal. Re-appending an existing decision orphans its old entry via
// the id map instead of touching the graph: coder/hnsw cannot replace a
// node under an existing key and deleting nodes can corrupt the graph,
// so the stale ordinal stays behind and is skipped at search time.
func (s *Shard) Append(metas []DecisionMeta, vectors [][]float32) error {
	if len(metas) != len(vectors) {
		return fmt.Errorf("metas and vectors length mismatch: %d vs %d", len(metas), len(vectors))
	}
	if len(metas) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, vec := range vectors {
		if s.dims == 0 {
			s.dims = len(vec)
		}
		if len(vec) != s.dims {
			return jerrors.New(jerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has dimension %d, shard %q expects %d", i, len(vec), s.area, s.dims), nil)
		}
	}

	for i, m := range metas {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		key := uint64(len(s.meta))
		s.meta = append(s.meta, m)
		// Overwriting the id map entry is the lazy deletion: the previous
		// ordinal no longer resolves and becomes a harmless orphan.
		s.ids[m.DecisionID] = key
		s.graph.Add(hnsw.MakeNode(key, vec))
	}

	return nil
}

// Search returns the k nearest decisions to the query vector, scored on
// the unified [0,1] cosine scale. An empty shard yields no hits.
func (s *Shard) Search(query []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.ids) == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if len(query) != s.dims {
		return nil, jerrors.New(jerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query dimension %d, shard %q expects %d", len(query), s.area, s.dims), nil)
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	// Over-fetch by the orphan count so lazily deleted ordinals cannot
	// crowd live decisions out of the top k.
	nodes := s.graph.Search(normalized, k+len(s.meta)-len(s.ids))

	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		if node.Key >= uint64(len(s.meta)) {
			continue
		}
		m := s.meta[node.Key]
		if s.ids[m.DecisionID] != node.Key {
			continue // orphaned by a re-append
		}
		distance := s.graph.Distance(normalized, node.Value)
		hits = append(hits, Hit{
			Meta:  m,
			Score: distanceToScore(distance),
		})
		if len(hits) == k {
			break
		}
	}

	return hits, nil
}

// Save persists the shard atomically: both files are written to temp
// paths and renamed, so readers never observe a partial write.
func (s *Shard) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jerrors.New(jerrors.ErrCodeShardPermission, "create shard directory", err)
	}

	if err := s.saveGraph(indexPath(dir, s.area)); err != nil {
		return err
	}
	return s.saveMapping(mappingPath(dir, s.area))
}

func (s *Shard) saveGraph(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return writeErr(s.area, "create index file", err)
	}

	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return writeErr(s.area, "export graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return writeErr(s.area, "close index file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return writeErr(s.area, "rename index file", err)
	}
	return nil
}

func (s *Shard) saveMapping(path string) error {
	data, err := encodeMetadata(s.meta)
	if err != nil {
		return fmt.Errorf("encode mapping for area %q: %w", s.area, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return writeErr(s.area, "write mapping file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return writeErr(s.area, "rename mapping file", err)
	}
	return nil
}

// writeErr classifies a write failure, surfacing disk exhaustion as its
// own fatal code.
func writeErr(area, op string, err error) error {
	if isNoSpace(err) {
		return jerrors.New(jerrors.ErrCodeDiskFull,
			fmt.Sprintf("%s for area %q: disk full", op, area), err)
	}
	return jerrors.New(jerrors.ErrCodeShardPermission,
		fmt.Sprintf("%s for area %q", op, area), err)
}

func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

// indexPath is the on-disk HNSW graph file for an area.
func indexPath(dir, area string) string {
	return filepath.Join(dir, "index_"+area+".hnsw")
}

// mappingPath is the on-disk metadata file for an area.
func mappingPath(dir, area string) string {
	return filepath.Join(dir, "mapping_"+area+".json")
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts cosine distance (0..2) to the unified [0,1]
// similarity scale shared with the live-fallback path.
func distanceToScore(distance float32) float64 {
	return 1.0 - float64(distance)/2.0
}
