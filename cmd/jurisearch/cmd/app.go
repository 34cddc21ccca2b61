package cmd

import (
	"context"
	"log/slog"

	"github.com/jurisearch/jurisearch/internal/classifier"
	"github.com/jurisearch/jurisearch/internal/config"
	"github.com/jurisearch/jurisearch/internal/embed"
	"github.com/jurisearch/jurisearch/internal/indexer"
	"github.com/jurisearch/jurisearch/internal/logging"
	"github.com/jurisearch/jurisearch/internal/search"
	"github.com/jurisearch/jurisearch/internal/shard"
	"github.com/jurisearch/jurisearch/internal/store"
)

// app wires the search engine components for one CLI invocation.
type app struct {
	cfg      *config.Config
	store    *store.Store
	shards   *shard.Store
	embedder embed.Embedder
	executor *search.Executor
	indexer  *indexer.Indexer
	logger   *slog.Logger
}

// newApp loads configuration and constructs the component graph.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()

	st, err := store.New(cfg.Paths.DatabasePath)
	if err != nil {
		return nil, err
	}

	shards, err := shard.NewStore(cfg.Paths.ShardDir, logging.ForComponent("shards"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	embedder, err := embed.Default(ctx, cfg, logging.ForComponent("embed"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	cls := classifier.New(cfg)

	return &app{
		cfg:      cfg,
		store:    st,
		shards:   shards,
		embedder: embedder,
		executor: search.NewExecutor(cfg, cls, shards, st, embedder, logging.ForComponent("search")),
		indexer:  indexer.New(cfg, st, shards, cls, embedder, logging.ForComponent("indexer")),
		logger:   logger,
	}, nil
}

// Close releases the app's resources. The embedder singleton stays alive
// for the process lifetime.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing backing store", "error", err)
	}
}
