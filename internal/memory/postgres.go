package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists memories in PostgreSQL and ranks them with full-text search.
type PostgresStore struct {
	pool       *pgxpool.Pool
	collection string
}

func NewPostgresStore(ctx context.Context, databaseURL, collection string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	if collection == "" {
		collection = "jarvis_memories"
	}
	return &PostgresStore{pool: pool, collection: collection}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jarvis_memories (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			text TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jarvis_memories_collection_seq ON jarvis_memories (collection, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_jarvis_memories_fts ON jarvis_memories USING GIN (to_tsvector('english', text));`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, record Record) error {
	// nil metadata is stored as JSON null so that {} and nil stay distinct.
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jarvis_memories (id, collection, text, metadata)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, metadata = EXCLUDED.metadata`,
		record.ID,
		s.collection,
		record.Text,
		string(meta),
	)
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, text string, k int) ([]RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, metadata::text,
		        ts_rank(to_tsvector('english', text), plainto_tsquery('english', $2)) AS rank
		 FROM jarvis_memories
		 WHERE collection = $1
		 ORDER BY rank DESC, seq DESC
		 LIMIT $3`,
		s.collection,
		text,
		k,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	out := make([]RetrievalResult, 0, k)
	for rows.Next() {
		var (
			r    RetrievalResult
			meta string
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		r.Metadata = parseMetadata(meta)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, text, metadata::text FROM jarvis_memories WHERE collection = $1 ORDER BY seq`,
		s.collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r    Record
			meta string
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		r.Metadata = parseMetadata(meta)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func parseMetadata(raw string) Metadata {
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
