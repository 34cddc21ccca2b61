package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	jerrors "github.com/jurisearch/jurisearch/internal/errors"
)

// OpenAIConfig configures the OpenAI-compatible embedding backend.
type OpenAIConfig struct {
	// APIKey authenticates against the API.
	APIKey string
	// BaseURL overrides the API endpoint for compatible providers.
	BaseURL string
	// Model is the embedding model identifier.
	Model string
	// Dimensions requests a specific output dimension (0 = model default).
	Dimensions int
	// BatchSize caps the number of inputs per request.
	BatchSize int
}

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dims      int
	batchSize int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI-compatible embedding backend.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(cfg.Model),
		dims:      cfg.Dimensions,
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		// The API rejects empty inputs; substitute a single space.
		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			if strings.TrimSpace(t) == "" {
				t = " "
			}
			batch[i] = t
		}

		req := openai.EmbeddingRequest{
			Input:          batch,
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		}
		if e.dims > 0 {
			req.Dimensions = e.dims
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, jerrors.EmbeddingUnavailable(parseAPIError(err))
		}
		if len(resp.Data) != len(batch) {
			return nil, jerrors.EmbeddingUnavailable(
				fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data)))
		}

		for _, d := range resp.Data {
			if e.dims == 0 {
				e.dims = len(d.Embedding)
			}
			results = append(results, normalizeVector(d.Embedding))
		}
	}

	return results, nil
}

// parseAPIError extracts a readable message from the API error shapes.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return err
}

// Dimensions returns the embedding dimension (0 until the first call when
// not configured explicitly).
func (e *OpenAIEmbedder) Dimensions() int {
	if e.dims == 0 {
		return DefaultDimensions
	}
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return string(e.model)
}

// Available verifies API reachability via the model list endpoint.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	_, err := e.client.ListModels(ctx)
	return err == nil
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
