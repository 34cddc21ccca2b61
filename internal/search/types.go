// Package search implements hybrid retrieval: shard search over the
// per-area HNSW indexes combined with a live similarity scan of the
// backing store, merged into one ranked, deduplicated list.
package search

// Origin identifies which path produced a result.
type Origin string

const (
	// OriginShard marks results from a persisted vector shard.
	OriginShard Origin = "shard"
	// OriginLive marks results computed on the fly from the backing store.
	OriginLive Origin = "live"
)

// SearchResult is one ranked decision.
type SearchResult struct {
	DecisionID int64   `json:"decision_id"`
	Score      float64 `json:"score"`
	LegalArea  string  `json:"legal_area"`
	Court      string  `json:"court,omitempty"`
	Date       string  `json:"date,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	Origin     Origin  `json:"origin"`
}

// Stats describes where a result set came from. Diagnostic only.
type Stats struct {
	PerArea       map[string]int `json:"per_area"`
	PerOrigin     map[Origin]int `json:"per_origin"`
	SourcesOK     int            `json:"sources_ok"`
	SourcesFailed int            `json:"sources_failed"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

// HybridResult is the complete answer to one query.
type HybridResult struct {
	Results       []SearchResult `json:"results"`
	DetectedAreas []string       `json:"detected_areas"`
	Stats         Stats          `json:"stats"`
}
