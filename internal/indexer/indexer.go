// Package indexer keeps the shard store eventually consistent with the
// backing store. It is the only shard writer: classification, embedding,
// and appends all happen here, under per-area cross-process locks.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/jurisearch/jurisearch/internal/classifier"
	"github.com/jurisearch/jurisearch/internal/config"
	"github.com/jurisearch/jurisearch/internal/embed"
	jerrors "github.com/jurisearch/jurisearch/internal/errors"
	"github.com/jurisearch/jurisearch/internal/shard"
	"github.com/jurisearch/jurisearch/internal/store"
)

// stateKeyLastPass is the engine_state key recording the last completed
// indexing pass, RFC3339.
const stateKeyLastPass = "indexer_last_pass"

// Indexer classifies unprocessed decisions and appends them to shards.
type Indexer struct {
	cfg        *config.Config
	store      *store.Store
	shards     *shard.Store
	classifier *classifier.Classifier
	embedder   embed.Embedder
	logger     *slog.Logger
}

// New creates an indexer.
func New(cfg *config.Config, st *store.Store, shards *shard.Store, cls *classifier.Classifier, embedder embed.Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		cfg:        cfg,
		store:      st,
		shards:     shards,
		classifier: cls,
		embedder:   embedder,
		logger:     logger,
	}
}

// Result summarizes one indexing pass.
type Result struct {
	// Processed is the number of decisions classified.
	Processed int `json:"processed"`
	// Added is the number of decisions appended to shards.
	Added int `json:"added"`
	// PerArea is the appended count per area.
	PerArea map[string]int `json:"per_area"`
}

// NeedsReindex reports whether an indexing pass is due: either the
// unclassified backlog exceeds the threshold, or the last pass is older
// than the rebuild interval. The reason string is for logging.
func (ix *Indexer) NeedsReindex(ctx context.Context) (bool, string, error) {
	backlog, err := ix.store.CountUnclassified(ctx)
	if err != nil {
		return false, "", err
	}
	if backlog > ix.cfg.Indexer.UnclassifiedThreshold {
		return true, fmt.Sprintf("%d unclassified decisions exceed threshold %d", backlog, ix.cfg.Indexer.UnclassifiedThreshold), nil
	}

	lastPass, err := ix.store.GetState(ctx, stateKeyLastPass)
	if err != nil {
		return false, "", err
	}
	if lastPass == "" {
		if backlog > 0 {
			return true, "no indexing pass recorded", nil
		}
		return false, "", nil
	}

	t, err := time.Parse(time.RFC3339, lastPass)
	if err != nil {
		return true, "unparseable last-pass timestamp", nil
	}
	if age := time.Since(t); age > ix.cfg.RebuildInterval() {
		return true, fmt.Sprintf("last pass %s ago exceeds interval %s", age.Round(time.Second), ix.cfg.RebuildInterval()), nil
	}

	return false, "", nil
}

// ClassifyAndIndex processes up to batchSize unclassified decisions:
// classify, embed, append to the matching shard, then record the detected
// area. The area is persisted only after the shard append succeeds, so an
// interrupted run leaves decisions unclassified and they are retried on
// the next pass; a retried append supersedes the earlier shard entry, so
// the pass stays idempotent.
func (ix *Indexer) ClassifyAndIndex(ctx context.Context, batchSize int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = ix.cfg.Indexer.BatchSize
	}

	decisions, err := ix.store.FetchDecisions(ctx, store.FetchOptions{
		UnclassifiedOnly: true,
		Limit:            batchSize,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{PerArea: make(map[string]int)}
	if len(decisions) == 0 {
		if err := ix.recordPass(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Classification is cheap and in-memory; group by target area first.
	byArea := make(map[string][]store.Decision)
	for _, d := range decisions {
		area := ix.classifier.Primary(d.Summary + " " + d.FullText)
		byArea[area] = append(byArea[area], d)
		result.Processed++
	}

	for _, area := range ix.cfg.AreaIDs() {
		group, ok := byArea[area]
		if !ok {
			continue
		}
		added, err := ix.indexGroup(ctx, area, group)
		if err != nil {
			return result, err
		}
		result.Added += added
		result.PerArea[area] = added
	}

	if err := ix.recordPass(ctx); err != nil {
		return result, err
	}

	ix.logger.Info("indexing pass complete",
		"processed", result.Processed,
		"added", result.Added)
	return result, nil
}

// indexGroup embeds one area's decisions and appends them to its shard
// under the area writer lock.
func (ix *Indexer) indexGroup(ctx context.Context, area string, group []store.Decision) (int, error) {
	texts := make([]string, len(group))
	metas := make([]shard.DecisionMeta, len(group))
	areas := make(map[int64]string, len(group))
	for i, d := range group {
		texts[i] = d.EmbeddingText()
		metas[i] = shard.DecisionMeta{
			DecisionID: d.ID,
			Court:      d.Court,
			Date:       d.DecidedAt,
			Snippet:    d.Snippet(),
		}
		areas[d.ID] = area
	}

	// Embed before taking the lock; only the append itself needs it.
	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return 0, err
	}

	lock, err := ix.lockArea(ctx, area)
	if err != nil {
		return 0, err
	}
	defer func() { _ = lock.Unlock() }()

	if err := ix.shards.Append(area, metas, vectors); err != nil {
		return 0, err
	}

	// Only now mark the decisions classified: a crash before this point
	// leaves them unclassified and the next pass retries them.
	if err := ix.store.SetDetectedAreas(ctx, areas); err != nil {
		return 0, err
	}

	return len(group), nil
}

// FullRebuild drops an area's shard and rebuilds it from the complete
// backing-store population for that area. Used on dimension changes,
// corruption, or explicit operator request.
func (ix *Indexer) FullRebuild(ctx context.Context, area string) (*Result, error) {
	if ix.cfg.AreaByID(area) == nil {
		return nil, jerrors.New(jerrors.ErrCodeAreaUnknown, fmt.Sprintf("unknown area %q", area), nil)
	}

	decisions, err := ix.store.FetchDecisions(ctx, store.FetchOptions{Area: area})
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(decisions))
	metas := make([]shard.DecisionMeta, len(decisions))
	for i, d := range decisions {
		texts[i] = d.EmbeddingText()
		metas[i] = shard.DecisionMeta{
			DecisionID: d.ID,
			Court:      d.Court,
			Date:       d.DecidedAt,
			Snippet:    d.Snippet(),
		}
	}

	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	lock, err := ix.lockArea(ctx, area)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if err := ix.shards.Drop(area); err != nil {
		return nil, err
	}
	if len(metas) > 0 {
		if err := ix.shards.Append(area, metas, vectors); err != nil {
			return nil, err
		}
	}

	// A rebuild counts as a completed pass for the reindex interval.
	if err := ix.recordPass(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		Processed: len(decisions),
		Added:     len(decisions),
		PerArea:   map[string]int{area: len(decisions)},
	}
	ix.logger.Info("full rebuild complete", "area", area, "decisions", len(decisions))
	return result, nil
}

// Sync appends decisions that have a detected area in the backing store
// but are missing from the corresponding shard, repairing drift from
// interrupted runs. Returns added counts per area.
func (ix *Indexer) Sync(ctx context.Context) (map[string]int, error) {
	added := make(map[string]int)

	for _, area := range ix.cfg.AreaIDs() {
		ids, err := ix.store.DecisionIDsByArea(ctx, area)
		if err != nil {
			return added, err
		}
		if len(ids) == 0 {
			continue
		}

		indexed := make(map[int64]bool)
		if s, err := ix.shards.Get(area); err == nil {
			for _, id := range s.DecisionIDs() {
				indexed[id] = true
			}
		} else if jerrors.GetCode(err) != jerrors.ErrCodeShardNotFound {
			return added, err
		}

		var missing []int64
		for _, id := range ids {
			if !indexed[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			continue
		}

		decisions, err := ix.store.FetchDecisions(ctx, store.FetchOptions{Area: area})
		if err != nil {
			return added, err
		}
		byID := make(map[int64]store.Decision, len(decisions))
		for _, d := range decisions {
			byID[d.ID] = d
		}

		group := make([]store.Decision, 0, len(missing))
		for _, id := range missing {
			if d, ok := byID[id]; ok {
				group = append(group, d)
			}
		}

		n, err := ix.indexGroup(ctx, area, group)
		if err != nil {
			return added, err
		}
		if n > 0 {
			added[area] = n
			ix.logger.Info("synced shard with backing store", "area", area, "added", n)
		}
	}

	return added, nil
}

// lockArea acquires the area writer lock, retrying briefly before giving
// up with a WriteConflict.
func (ix *Indexer) lockArea(ctx context.Context, area string) (*AreaLock, error) {
	lock := NewAreaLock(ix.shards.Dir(), area)

	err := jerrors.Retry(ctx, jerrors.WriterRetryConfig(), func() error {
		acquired, err := lock.TryLock()
		if err != nil {
			return err
		}
		if !acquired {
			return jerrors.WriteConflict(area)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, jerrors.WriteConflict(area)
	}
	return lock, nil
}

// recordPass stores the completion time of an indexing pass.
func (ix *Indexer) recordPass(ctx context.Context) error {
	return ix.store.SetState(ctx, stateKeyLastPass, time.Now().UTC().Format(time.RFC3339))
}

// embedAll embeds texts in batches through a worker pool.
func (ix *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batch := ix.cfg.Embeddings.BatchSize
	if batch <= 0 {
		batch = embed.DefaultBatchSize
	}
	workers := ix.cfg.Indexer.Workers
	if workers <= 0 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()

			vecs, err := ix.embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			copy(vectors[start:end], vecs)
		}); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
