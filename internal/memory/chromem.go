package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// metaJSONKey keeps the typed metadata next to the string copies chromem filters on.
const metaJSONKey = "__meta_json"

// ChromemStore wraps an embedded chromem-go collection.
// With a directory the DB is persistent and every Add is written through to disk.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
}

func NewChromemStore(dir, collection string, embedder Embedder) (*ChromemStore, error) {
	if embedder == nil {
		return nil, errors.New("chromem store requires an embedder")
	}
	if strings.TrimSpace(collection) == "" {
		collection = "jarvis_memories"
	}

	var db *chromem.DB
	if strings.TrimSpace(dir) == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", dir, err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemStore{db: db, col: col}, nil
}

func (s *ChromemStore) Add(ctx context.Context, record Record) error {
	meta, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:       record.ID,
		Content:  record.Text,
		Metadata: meta,
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]RetrievalResult, error) {
	if k <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size.
	if n := s.col.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}
	results, err := s.col.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	out := make([]RetrievalResult, 0, len(results))
	for _, r := range results {
		out = append(out, RetrievalResult{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   decodeMetadata(r.Metadata),
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

// All lists every document. chromem has no scan API, so this ranks the whole
// collection against a query text and then restores id order, which is
// insertion order for generated ids.
func (s *ChromemStore) All(ctx context.Context) ([]Record, error) {
	n := s.col.Count()
	if n == 0 {
		return nil, nil
	}
	results, err := s.col.Query(ctx, "memory", n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem list: %w", err)
	}
	out := make([]Record, 0, len(results))
	for _, r := range results {
		out = append(out, Record{ID: r.ID, Text: r.Content, Metadata: decodeMetadata(r.Metadata)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ChromemStore) Count() int { return s.col.Count() }

// Close is a no-op: documents are already on disk.
func (s *ChromemStore) Close() error { return nil }

// encodeMetadata flattens scalars for chromem filters and keeps a typed JSON
// copy. An empty map still gets the copy so it reads back as {} rather than nil.
func encodeMetadata(m Metadata) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		if k == metaJSONKey {
			continue
		}
		switch v.(type) {
		case nil, string, bool, float32, float64, int, int32, int64, uint, uint32, uint64, json.Number:
		default:
			return nil, fmt.Errorf("metadata %q: unsupported value type %T", k, v)
		}
		out[k] = fmt.Sprint(v)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	out[metaJSONKey] = string(raw)
	return out, nil
}

func decodeMetadata(m map[string]string) Metadata {
	if len(m) == 0 {
		return nil
	}
	if raw, ok := m[metaJSONKey]; ok {
		var typed Metadata
		if err := json.Unmarshal([]byte(raw), &typed); err == nil {
			return typed
		}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if k == metaJSONKey {
			continue
		}
		out[k] = v
	}
	return out
}
