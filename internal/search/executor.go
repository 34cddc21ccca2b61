package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jurisearch/jurisearch/internal/classifier"
	"github.com/jurisearch/jurisearch/internal/config"
	"github.com/jurisearch/jurisearch/internal/embed"
	jerrors "github.com/jurisearch/jurisearch/internal/errors"
	"github.com/jurisearch/jurisearch/internal/shard"
	"github.com/jurisearch/jurisearch/internal/store"
)

// Executor orchestrates classifier, shard store, and live fallback into
// one ranked result set. Shard search is fast but possibly stale; live
// search is slow but fresh; the per-area budget is split between them.
//
// Error policy: every sub-search fails soft to an empty contribution.
// Only a backing-store failure escalates, because then neither path can
// produce anything.
type Executor struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	shards     *shard.Store
	live       *LiveSearcher
	embedder   embed.Embedder
	logger     *slog.Logger
}

// NewExecutor wires the hybrid search pipeline.
func NewExecutor(cfg *config.Config, cls *classifier.Classifier, shards *shard.Store, st *store.Store, embedder embed.Embedder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:        cfg,
		classifier: cls,
		shards:     shards,
		live:       NewLiveSearcher(st, embedder, cfg.Search.MinLiveScore),
		embedder:   embedder,
		logger:     logger,
	}
}

// Search answers a free-text query with up to k ranked decisions.
func (e *Executor) Search(ctx context.Context, query string, k int) (*HybridResult, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, jerrors.New(jerrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if k <= 0 {
		k = e.cfg.Search.DefaultLimit
	}
	if k > e.cfg.Search.MaxLimit {
		k = e.cfg.Search.MaxLimit
	}

	primary := e.classifier.Primary(query)
	areas := []string{primary}
	for _, a := range e.classifier.Multiple(query, e.cfg.Search.AreaThreshold) {
		if a != primary {
			areas = append(areas, a)
		}
	}

	result := &HybridResult{
		Results:       []SearchResult{},
		DetectedAreas: areas,
		Stats: Stats{
			PerArea:   make(map[string]int),
			PerOrigin: make(map[Origin]int),
		},
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		// No vector means neither path can run. Degrade to empty rather
		// than failing the call.
		e.logger.Warn("query embedding failed",
			"query_len", len(query),
			"error", err)
		result.Stats.SourcesFailed = 2
		result.Stats.ElapsedMS = time.Since(start).Milliseconds()
		return result, nil
	}

	all, ok, failed, err := e.searchArea(ctx, primary, queryVec, k)
	if err != nil {
		return nil, err
	}
	merged := mergeResults(all, k)

	// Spill over into secondary detected areas only when the primary
	// under-fills the budget.
	if len(merged) < k && len(areas) > 1 {
		secondaries := areas[1:]
		if max := e.cfg.Search.SecondaryAreas; max > 0 && len(secondaries) > max {
			secondaries = secondaries[:max]
		}
		for _, area := range secondaries {
			remaining := k - len(merged)
			if remaining <= 0 {
				break
			}
			sub, subOK, subFailed, err := e.searchArea(ctx, area, queryVec, remaining)
			if err != nil {
				return nil, err
			}
			ok += subOK
			failed += subFailed
			all = append(all, sub...)
			merged = mergeResults(all, k)
		}
	}

	result.Results = merged
	result.Stats.SourcesOK = ok
	result.Stats.SourcesFailed = failed
	for _, r := range merged {
		result.Stats.PerArea[r.LegalArea]++
		result.Stats.PerOrigin[r.Origin]++
	}
	result.Stats.ElapsedMS = time.Since(start).Milliseconds()

	e.logger.Debug("hybrid search complete",
		"primary_area", primary,
		"areas", len(areas),
		"results", len(merged),
		"sources_ok", ok,
		"sources_failed", failed,
		"elapsed_ms", result.Stats.ElapsedMS)

	return result, nil
}

// searchArea runs the shard and live sub-searches for one area in
// parallel, each with half the budget and its own timeout. The returned
// slice keeps shard results before live results so the merge sequence is
// deterministic. Only backing-store failures surface as errors.
func (e *Executor) searchArea(ctx context.Context, area string, queryVec []float32, budget int) ([]SearchResult, int, int, error) {
	half := (budget + 1) / 2

	var (
		shardResults []SearchResult
		liveResults  []SearchResult
		shardFailed  bool
		liveFailed   bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Shard search is in-memory once the shard is loaded; no timeout
		// context needed.
		hits, err := e.shards.Search(area, queryVec, half)
		if err != nil {
			e.logger.Warn("shard search degraded",
				"area", area,
				"error", err)
			shardFailed = true
			return nil
		}

		shardResults = make([]SearchResult, 0, len(hits))
		for _, h := range hits {
			shardResults = append(shardResults, SearchResult{
				DecisionID: h.Meta.DecisionID,
				Score:      h.Score,
				LegalArea:  area,
				Court:      h.Meta.Court,
				Date:       h.Meta.Date,
				Snippet:    h.Meta.Snippet,
				Origin:     OriginShard,
			})
		}
		return nil
	})

	g.Go(func() error {
		subCtx, cancel := context.WithTimeout(gctx, e.cfg.SubSearchTimeout())
		defer cancel()

		results, err := e.live.Search(subCtx, queryVec, area, half)
		if err != nil {
			if jerrors.GetCode(err) == jerrors.ErrCodeBackingStoreUnavailable {
				return err
			}
			e.logger.Warn("live search degraded",
				"area", area,
				"error", err)
			liveFailed = true
			return nil
		}
		liveResults = results
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	ok, failed := 0, 0
	for _, f := range []bool{shardFailed, liveFailed} {
		if f {
			failed++
		} else {
			ok++
		}
	}

	return append(shardResults, liveResults...), ok, failed, nil
}
