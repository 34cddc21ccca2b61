package shard

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	jerrors "github.com/jurisearch/jurisearch/internal/errors"
)

// DefaultHandleCacheSize bounds the number of shards held in memory.
// Area counts are small; the bound guards against pathological configs.
const DefaultHandleCacheSize = 32

// Stats summarizes one shard for the operator-facing stats command.
type Stats struct {
	Area      string    `json:"area"`
	Decisions int       `json:"decisions"`
	SizeBytes int64     `json:"size_bytes"`
	BuiltAt   time.Time `json:"built_at"`
}

// Store hands out shard handles with an LRU get-or-load cache, replacing
// ad hoc per-caller loads. Invalidate drops a cached handle after an
// external writer replaced the files underneath it.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex // serializes load-on-miss
	cache *lru.Cache[string, *Shard]
}

// NewStore creates a shard store rooted at dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, jerrors.New(jerrors.ErrCodeShardPermission, "create shard directory", err)
	}

	cache, _ := lru.New[string, *Shard](DefaultHandleCacheSize)
	return &Store{
		dir:    dir,
		logger: logger,
		cache:  cache,
	}, nil
}

// Dir returns the shard directory.
func (st *Store) Dir() string {
	return st.dir
}

// Get returns the shard for an area, loading it from disk on first use.
// Returns ShardNotFound when the area has no files on disk.
func (st *Store) Get(area string) (*Shard, error) {
	if s, ok := st.cache.Get(area); ok {
		return s, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Another caller may have loaded it while we waited.
	if s, ok := st.cache.Get(area); ok {
		return s, nil
	}

	s, err := loadShard(st.dir, area)
	if err != nil {
		return nil, err
	}

	st.cache.Add(area, s)
	return s, nil
}

// GetOrCreate returns the area's shard, creating an empty one in memory
// when none exists on disk. The empty shard is not persisted until the
// first Append.
func (st *Store) GetOrCreate(area string) (*Shard, error) {
	s, err := st.Get(area)
	if err == nil {
		return s, nil
	}
	if jerrors.GetCode(err) != jerrors.ErrCodeShardNotFound {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.cache.Get(area); ok {
		return s, nil
	}
	s = newShard(area)
	st.cache.Add(area, s)
	return s, nil
}

// Search runs a nearest-neighbor query against one area. Absent shards
// yield zero hits; corrupt shards are logged, dropped from the cache,
// and treated as absent for this call.
func (st *Store) Search(area string, query []float32, k int) ([]Hit, error) {
	s, err := st.Get(area)
	if err != nil {
		switch jerrors.GetCode(err) {
		case jerrors.ErrCodeShardNotFound:
			return []Hit{}, nil
		case jerrors.ErrCodeShardCorrupt:
			st.logger.Warn("shard corrupt, treating as absent",
				"area", area,
				"error", err)
			st.cache.Remove(area)
			return []Hit{}, nil
		}
		return nil, err
	}

	return s.Search(query, k)
}

// Append inserts decisions into the area's shard and persists it. The
// caller must hold the area's writer lock.
func (st *Store) Append(area string, metas []DecisionMeta, vectors [][]float32) error {
	s, err := st.GetOrCreate(area)
	if err != nil {
		return err
	}
	if err := s.Append(metas, vectors); err != nil {
		return err
	}
	return s.Save(st.dir)
}

// Invalidate drops the cached handle so the next Get reloads from disk.
func (st *Store) Invalidate(area string) {
	st.cache.Remove(area)
}

// Drop removes the area's files from disk and invalidates the handle.
// Used by full rebuilds before re-indexing an area from scratch.
func (st *Store) Drop(area string) error {
	st.cache.Remove(area)

	for _, path := range []string{indexPath(st.dir, area), mappingPath(st.dir, area)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return jerrors.New(jerrors.ErrCodeShardPermission, "remove shard file", err)
		}
	}
	return nil
}

// Areas lists the areas that have shard files on disk.
func (st *Store) Areas() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(st.dir, "index_*.hnsw"))
	if err != nil {
		return nil, err
	}

	areas := make([]string, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		area := strings.TrimSuffix(strings.TrimPrefix(name, "index_"), ".hnsw")
		if area != "" {
			areas = append(areas, area)
		}
	}
	return areas, nil
}

// Stats reports the decision count and on-disk size for one area.
func (st *Store) Stats(area string) (Stats, error) {
	s, err := st.Get(area)
	if err != nil {
		return Stats{}, err
	}

	var size int64
	var builtAt time.Time
	for _, path := range []string{indexPath(st.dir, area), mappingPath(st.dir, area)} {
		if info, err := os.Stat(path); err == nil {
			size += info.Size()
			if info.ModTime().After(builtAt) {
				builtAt = info.ModTime()
			}
		}
	}

	return Stats{
		Area:      area,
		Decisions: s.Len(),
		SizeBytes: size,
		BuiltAt:   builtAt,
	}, nil
}
