package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const snapshotFile = "memories.json"

// InMemoryStore is a simple in-process store for local/dev use and tests.
// Ranking is token overlap. With a directory set, Persist writes a JSON snapshot
// that the next NewInMemoryStore for that directory loads back.
type InMemoryStore struct {
	mu      sync.RWMutex
	dir     string
	records []Record
}

func NewInMemoryStore(dir string) (*InMemoryStore, error) {
	s := &InMemoryStore{dir: strings.TrimSpace(dir)}
	if s.dir == "" {
		return s, nil
	}
	f, err := os.Open(filepath.Join(s.dir, snapshotFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	records, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.records = records
	return s, nil
}

func (s *InMemoryStore) Add(_ context.Context, record Record) error {
	if record.ID == "" {
		return errors.New("record id is empty")
	}
	record.Metadata = cloneMetadata(record.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == record.ID {
			s.records[i] = record
			return nil
		}
	}
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, text string, k int) ([]RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.records) == 0 {
		return nil, nil
	}

	query := tokenSet(text)
	type scored struct {
		idx   int
		score float32
	}
	hits := make([]scored, 0, len(s.records))
	for i, r := range s.records {
		hits = append(hits, scored{idx: i, score: overlap(query, tokenSet(r.Text))})
	}
	// Ties keep the newest record first.
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].idx > hits[b].idx
	})
	if k > len(hits) {
		k = len(hits)
	}
	out := make([]RetrievalResult, 0, k)
	for _, h := range hits[:k] {
		r := s.records[h.idx]
		out = append(out, RetrievalResult{ID: r.ID, Text: r.Text, Metadata: cloneMetadata(r.Metadata), Similarity: h.score})
	}
	return out, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		r.Metadata = cloneMetadata(r.Metadata)
		out[i] = r
	}
	return out, nil
}

// Persist writes the snapshot atomically. No-op without a directory.
func (s *InMemoryStore) Persist(_ context.Context) error {
	if s.dir == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, snapshotFile+".*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := WriteJSON(tmp, s.records); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, snapshotFile)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// overlap is the Jaccard index of two token sets.
func overlap(a, b map[string]struct{}) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float32(shared) / float32(len(a)+len(b)-shared)
}
