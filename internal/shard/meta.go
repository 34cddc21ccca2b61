package shard

import (
	"encoding/json"
	"fmt"
)

// DecisionMeta is the per-decision record stored alongside the vector
// index. Slice position i corresponds to graph key i.
type DecisionMeta struct {
	DecisionID int64  `json:"decision_id"`
	Court      string `json:"court"`
	Date       string `json:"date"`
	Snippet    string `json:"snippet"`
}

// wrappedMetadata is the legacy mapping-file shape. Early index builds
// wrapped the records in an object; current builds write a bare array.
type wrappedMetadata struct {
	Metadata []DecisionMeta `json:"metadata"`
}

// decodeMetadata parses a mapping file, accepting both the current bare
// array shape and the legacy wrapped shape.
func decodeMetadata(data []byte) ([]DecisionMeta, error) {
	var metas []DecisionMeta
	if err := json.Unmarshal(data, &metas); err == nil {
		return metas, nil
	}

	var wrapped wrappedMetadata
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Metadata != nil {
		return wrapped.Metadata, nil
	}

	return nil, fmt.Errorf("mapping file is neither a metadata array nor a wrapped object")
}

// encodeMetadata serializes records in the current bare-array shape.
func encodeMetadata(metas []DecisionMeta) ([]byte, error) {
	if metas == nil {
		metas = []DecisionMeta{}
	}
	return json.Marshal(metas)
}
