package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jurisearch/jurisearch/internal/config"
)

// Provider names accepted in the embeddings config section.
const (
	ProviderService = "service"
	ProviderOpenAI  = "openai"
	ProviderStatic  = "static"
)

// NewFromConfig builds the configured embedding backend wrapped in the
// query-embedding LRU cache. When the HTTP service is unreachable the
// static embedder takes over so indexing and search keep working offline.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	inner, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	switch cfg.Embeddings.Provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil

	case ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    cfg.Embeddings.Endpoint,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		})

	case ProviderService, "":
		svc, err := NewServiceEmbedder(ctx, ServiceConfig{
			Endpoint:   cfg.Embeddings.Endpoint,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.EmbeddingTimeout(),
		})
		if err != nil {
			logger.Warn("embedding service unavailable, falling back to static embedder",
				"endpoint", cfg.Embeddings.Endpoint,
				"error", err)
			return NewStaticEmbedder(), nil
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
}

var (
	defaultOnce     sync.Once
	defaultEmbedder Embedder
	defaultErr      error
)

// Default returns the process-wide embedder built from cfg on first call.
// Subsequent calls return the same instance regardless of cfg; use
// NewFromConfig directly when per-call configuration matters.
func Default(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	defaultOnce.Do(func() {
		defaultEmbedder, defaultErr = NewFromConfig(ctx, cfg, logger)
	})
	return defaultEmbedder, defaultErr
}
