package memory

import (
	"context"
	"fmt"
	"strings"
)

// Opener opens a store at a storage location. Adapter.Reinit calls it again when
// the location changes.
type Opener func(ctx context.Context, location string) (VectorStore, error)

// Options select the backend behind an Opener.
type Options struct {
	// Backend is chromem, postgres, memory or none.
	Backend     string
	DatabaseURL string
	Collection  string
	Embedder    Embedder
}

// NewOpener returns an Opener for the configured backend.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context, location string) (VectorStore, error) {
		return Open(ctx, opts, location)
	}
}

// Open creates the configured store. For postgres the location is ignored.
func Open(ctx context.Context, opts Options, location string) (VectorStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "chromem":
		embedder := opts.Embedder
		if embedder == nil {
			embedder = NewHashEmbedder(0)
		}
		return NewChromemStore(location, opts.Collection, embedder)
	case "postgres":
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, fmt.Errorf("postgres memory backend requires a database url")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL, opts.Collection)
	case "memory":
		return NewInMemoryStore(location)
	case "none":
		return nil, ErrUnavailable
	default:
		return nil, fmt.Errorf("unknown memory backend %q", opts.Backend)
	}
}
