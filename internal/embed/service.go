package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jerrors "github.com/jurisearch/jurisearch/internal/errors"
)

// Connection pool defaults for the embedding service client.
const (
	servicePoolSize       = 4
	serviceConnectTimeout = 5 * time.Second
)

// ServiceConfig configures the HTTP embedding service client.
type ServiceConfig struct {
	// Endpoint is the service base URL, e.g. http://localhost:11434.
	Endpoint string
	// Model is the embedding model identifier.
	Model string
	// Dimensions is the expected embedding dimension (0 = detect on startup).
	Dimensions int
	// BatchSize caps the number of inputs per request.
	BatchSize int
	// Timeout bounds a single embedding request.
	Timeout time.Duration
	// SkipHealthCheck disables the startup availability probe (tests).
	SkipHealthCheck bool
}

// embedRequest is the /api/embed request body (Ollama-compatible).
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the /api/embed response body.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// ServiceEmbedder generates embeddings via an Ollama-compatible HTTP API.
// A circuit breaker makes it fail fast while the service is down, so the
// live-fallback path degrades immediately instead of waiting out timeouts.
type ServiceEmbedder struct {
	client    *http.Client
	transport *http.Transport
	breaker   *jerrors.CircuitBreaker
	config    ServiceConfig
	dims      int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*ServiceEmbedder)(nil)

// NewServiceEmbedder creates an embedding service client and, unless
// SkipHealthCheck is set, verifies the service is reachable and detects the
// embedding dimension.
func NewServiceEmbedder(ctx context.Context, cfg ServiceConfig) (*ServiceEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = "embeddinggemma"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Short IdleConnTimeout so CLI runs release connections promptly.
	transport := &http.Transport{
		MaxIdleConns:        servicePoolSize,
		MaxIdleConnsPerHost: servicePoolSize,
		MaxConnsPerHost:     servicePoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client-level timeout: each request carries its own context deadline
	// so the cold first call can get a longer budget than warm ones.
	e := &ServiceEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		breaker:   jerrors.NewCircuitBreaker("embedding-service"),
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, ColdTimeout)
		defer cancel()

		if e.dims == 0 {
			dims, err := e.detectDimensions(checkCtx)
			if err != nil {
				transport.CloseIdleConnections()
				return nil, jerrors.EmbeddingUnavailable(err)
			}
			e.dims = dims
		} else if !e.Available(checkCtx) {
			transport.CloseIdleConnections()
			return nil, jerrors.EmbeddingUnavailable(fmt.Errorf("service not reachable at %s", cfg.Endpoint))
		}
	}

	if e.dims == 0 {
		e.dims = DefaultDimensions
	}

	return e, nil
}

// detectDimensions embeds a probe text and returns the vector length.
func (e *ServiceEmbedder) detectDimensions(ctx context.Context) (int, error) {
	embeddings, err := e.doEmbed(ctx, []string{"dimension detection"})
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(embeddings[0]), nil
}

// doEmbed performs one /api/embed request through the circuit breaker.
func (e *ServiceEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	err := e.breaker.Execute(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
		if err != nil {
			return fmt.Errorf("marshal embed request: %w", err)
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Endpoint+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			if reqCtx.Err() == context.DeadlineExceeded {
				return jerrors.New(jerrors.ErrCodeNetworkTimeout, "embedding request timed out", err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		var result embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode embed response: %w", err)
		}

		if len(result.Embeddings) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
		}

		embeddings = result.Embeddings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Embed generates embedding for a single text.
func (e *ServiceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}

	embeddings, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, wrapEmbedErr(err)
	}
	if err := e.checkDims(embeddings[0]); err != nil {
		return nil, err
	}

	return normalizeVector(embeddings[0]), nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the input
// into requests of at most BatchSize texts.
func (e *ServiceEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, wrapEmbedErr(err)
		}

		for _, emb := range embeddings {
			if err := e.checkDims(emb); err != nil {
				return nil, err
			}
			results = append(results, normalizeVector(emb))
		}
	}

	return results, nil
}

// checkDims rejects vectors whose length disagrees with the configured
// dimension. Mixing dimensions inside one shard corrupts the graph.
func (e *ServiceEmbedder) checkDims(vec []float32) error {
	if len(vec) != e.dims {
		return jerrors.New(jerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding dimension %d does not match expected %d", len(vec), e.dims), nil)
	}
	return nil
}

// wrapEmbedErr maps transport failures onto the embedding-unavailable code
// while passing structured errors through unchanged.
func wrapEmbedErr(err error) error {
	if _, ok := err.(*jerrors.JurisError); ok {
		return err
	}
	return jerrors.EmbeddingUnavailable(err)
}

// Dimensions returns the embedding dimension.
func (e *ServiceEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *ServiceEmbedder) ModelName() string {
	return e.config.Model
}

// Available probes the service's model list endpoint.
func (e *ServiceEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, serviceConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases pooled connections.
func (e *ServiceEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
