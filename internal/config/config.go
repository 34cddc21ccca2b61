// Package config loads and validates the jurisearch configuration,
// including the static legal-area definitions that drive query routing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete jurisearch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Indexer    IndexerConfig    `yaml:"indexer" json:"indexer"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`

	// Areas is the static legal-area set. Loaded at startup, immutable for
	// the process lifetime. Each area maps 1:1 to a shard name.
	Areas []LegalArea `yaml:"areas" json:"areas"`

	// DefaultArea is the routing fallback when classification finds nothing.
	DefaultArea string `yaml:"default_area" json:"default_area"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir is the root data directory (default: ~/.jurisearch).
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// ShardDir is where index/mapping shard files live (default: <data_dir>/shards).
	ShardDir string `yaml:"shard_dir" json:"shard_dir"`
	// DatabasePath is the SQLite backing store (default: <data_dir>/decisions.db).
	DatabasePath string `yaml:"database_path" json:"database_path"`
}

// SearchConfig configures the hybrid search executor.
type SearchConfig struct {
	// DefaultLimit is the result count when the caller passes k <= 0.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps k to bound per-query work.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// MinLiveScore is the similarity floor for live-fallback hits on the
	// unified [0,1] cosine scale (0.55 corresponds to a raw cosine of ~0.1).
	MinLiveScore float64 `yaml:"min_live_score" json:"min_live_score"`

	// SecondaryAreas is the maximum number of non-primary detected areas
	// searched when the primary area under-fills the budget.
	SecondaryAreas int `yaml:"secondary_areas" json:"secondary_areas"`

	// AreaThreshold is the relative score cutoff for multi-area detection
	// (fraction of the best area's score, not an absolute value).
	AreaThreshold float64 `yaml:"area_threshold" json:"area_threshold"`

	// SubSearchTimeout bounds each shard or live sub-search (duration string).
	SubSearchTimeout string `yaml:"sub_search_timeout" json:"sub_search_timeout"`

	// ClassifierCacheSize is the LRU size for classification results.
	ClassifierCacheSize int `yaml:"classifier_cache_size" json:"classifier_cache_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "service" (HTTP), "openai", or "static".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model identifier.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding dimension (0 = auto-detect on first call).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Endpoint is the embedding service base URL (service provider only).
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Timeout bounds a single embedding request (duration string).
	Timeout string `yaml:"timeout" json:"timeout"`
	// CacheSize is the LRU size for cached query embeddings.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// IndexerConfig configures the incremental indexer.
type IndexerConfig struct {
	// UnclassifiedThreshold is the number of unclassified decisions that
	// triggers a reindex pass.
	UnclassifiedThreshold int `yaml:"unclassified_threshold" json:"unclassified_threshold"`
	// RebuildInterval is the wall-clock interval after which a full pass is
	// due regardless of backlog (duration string, default "24h").
	RebuildInterval string `yaml:"rebuild_interval" json:"rebuild_interval"`
	// BatchSize is the number of decisions per classify-and-index batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Workers is the embedding worker pool size.
	Workers int `yaml:"workers" json:"workers"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".jurisearch")

	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:      dataDir,
			ShardDir:     filepath.Join(dataDir, "shards"),
			DatabasePath: filepath.Join(dataDir, "decisions.db"),
		},
		Search: SearchConfig{
			DefaultLimit:        10,
			MaxLimit:            100,
			MinLiveScore:        0.55,
			SecondaryAreas:      2,
			AreaThreshold:       0.05,
			SubSearchTimeout:    "5s",
			ClassifierCacheSize: 10000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "service",
			Model:     "embeddinggemma",
			BatchSize: 32,
			Endpoint:  "http://localhost:11434",
			Timeout:   "60s",
			CacheSize: 4096,
		},
		Indexer: IndexerConfig{
			UnclassifiedThreshold: 10,
			RebuildInterval:       "24h",
			BatchSize:             100,
			Workers:               4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Areas:       DefaultAreas(),
		DefaultArea: DefaultAreaID,
	}
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".jurisearch", "config.yaml")
}

// Load reads configuration from path, applying defaults for missing fields.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for consistency and normalizes
// defaulted keyword weights.
func (c *Config) Validate() error {
	if len(c.Areas) == 0 {
		return fmt.Errorf("config: at least one legal area is required")
	}

	seen := make(map[string]bool, len(c.Areas))
	for i := range c.Areas {
		a := &c.Areas[i]
		if a.ID == "" {
			return fmt.Errorf("config: area %d has empty id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("config: duplicate area id %q", a.ID)
		}
		seen[a.ID] = true

		for j := range a.Keywords {
			if a.Keywords[j].Term == "" {
				return fmt.Errorf("config: area %q keyword %d has empty term", a.ID, j)
			}
			if a.Keywords[j].Weight <= 0 {
				a.Keywords[j].Weight = 1.0
			}
		}
	}

	if c.DefaultArea == "" {
		return fmt.Errorf("config: default_area is required")
	}
	if !seen[c.DefaultArea] {
		return fmt.Errorf("config: default_area %q is not a configured area", c.DefaultArea)
	}

	if c.Search.MinLiveScore < 0 || c.Search.MinLiveScore > 1 {
		return fmt.Errorf("config: min_live_score must be in [0,1], got %v", c.Search.MinLiveScore)
	}
	if c.Search.AreaThreshold < 0 || c.Search.AreaThreshold > 1 {
		return fmt.Errorf("config: area_threshold must be in [0,1], got %v", c.Search.AreaThreshold)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("config: default_limit must be positive")
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("config: max_limit must be >= default_limit")
	}

	if _, err := time.ParseDuration(c.Search.SubSearchTimeout); err != nil {
		return fmt.Errorf("config: invalid sub_search_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Indexer.RebuildInterval); err != nil {
		return fmt.Errorf("config: invalid rebuild_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Embeddings.Timeout); err != nil {
		return fmt.Errorf("config: invalid embeddings timeout: %w", err)
	}

	return nil
}

// SubSearchTimeout returns the parsed per-sub-search timeout.
func (c *Config) SubSearchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Search.SubSearchTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// RebuildInterval returns the parsed full-rebuild interval.
func (c *Config) RebuildInterval() time.Duration {
	d, err := time.ParseDuration(c.Indexer.RebuildInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// EmbeddingTimeout returns the parsed per-request embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
