package memory

import (
	"context"
	"errors"
)

// Metadata holds flat scalar annotations (string, number, bool) for a record.
type Metadata map[string]any

// Record is one durable memory.
type Record struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// RetrievalResult is one similarity-search hit. Results keep the store's ranking.
type RetrievalResult struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	Similarity float32  `json:"similarity"`
}

var ErrUnavailable = errors.New("memory store unavailable")

// VectorStore is a similarity-search store of text records.
type VectorStore interface {
	Add(ctx context.Context, record Record) error
	// Query returns at most k results, best match first.
	Query(ctx context.Context, text string, k int) ([]RetrievalResult, error)
	// All returns every record in insertion order.
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// Persister is implemented by stores that buffer writes and need an explicit flush.
type Persister interface {
	Persist(ctx context.Context) error
}

func cloneMetadata(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
