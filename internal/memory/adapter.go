package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/observability"
)

// Adapter fronts the vector store for the turn loop. Add, Query and Persist never
// return errors: failures are logged and counted, and the turn carries on.
// Reinit swaps the underlying store under the write lock, so it never overlaps
// an in-flight Add or Query.
type Adapter struct {
	mu       sync.RWMutex
	open     Opener
	cap      Capability
	location string

	ids     *IDGenerator
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAdapter opens the store at location. An open failure leaves the adapter
// Unavailable rather than failing startup.
func NewAdapter(ctx context.Context, open Opener, location string, logger *zap.Logger, metrics *observability.Metrics) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		open:     open,
		location: location,
		ids:      NewIDGenerator(),
		logger:   logger.Named("memory"),
		metrics:  metrics,
	}
	a.cap = a.openLocked(ctx, location)
	return a
}

// NewAdapterWithStore wraps an already opened store. Reinit is unsupported unless open is set.
func NewAdapterWithStore(store VectorStore, open Opener, logger *zap.Logger, metrics *observability.Metrics) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := Unavailable("no store")
	if store != nil {
		c = Available(store)
	}
	return &Adapter{
		open:    open,
		cap:     c,
		ids:     NewIDGenerator(),
		logger:  logger.Named("memory"),
		metrics: metrics,
	}
}

func (a *Adapter) openLocked(ctx context.Context, location string) Capability {
	if a.open == nil {
		return Unavailable("no opener configured")
	}
	store, err := a.open(ctx, location)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			a.logger.Info("memory disabled", zap.String("location", location))
			return Unavailable("disabled")
		}
		a.logger.Warn("memory store unavailable", zap.String("location", location), zap.Error(err))
		a.metrics.ObserveMemoryError("open")
		return Unavailable(err.Error())
	}
	if store == nil {
		return Unavailable("opener returned no store")
	}
	a.logger.Info("memory store ready", zap.String("location", location))
	return Available(store)
}

func (a *Adapter) Capability() Capability {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cap
}

func (a *Adapter) Location() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.location
}

// Add stores text with metadata and returns the new id, or "" when nothing was stored.
func (a *Adapter) Add(ctx context.Context, text string, meta Metadata) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	store, ok := a.cap.Store()
	if !ok {
		a.logger.Debug("skip add: store unavailable", zap.String("reason", a.cap.Reason()))
		return ""
	}
	rec := Record{ID: a.ids.Next(), Text: text, Metadata: cloneMetadata(meta)}
	if err := store.Add(ctx, rec); err != nil {
		a.logger.Error("failed to add memory", zap.String("id", rec.ID), zap.Error(err))
		a.metrics.ObserveMemoryError("add")
		return ""
	}
	a.logger.Debug("added memory", zap.String("id", rec.ID))
	return rec.ID
}

// Query returns up to k results in the store's ranking order; empty on any failure.
func (a *Adapter) Query(ctx context.Context, text string, k int) []RetrievalResult {
	if k <= 0 {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	store, ok := a.cap.Store()
	if !ok {
		return nil
	}
	start := time.Now()
	results, err := store.Query(ctx, text, k)
	a.metrics.ObserveStage("memory_query", time.Since(start))
	if err != nil {
		a.logger.Error("failed to query memories", zap.Error(err))
		a.metrics.ObserveMemoryError("query")
		return nil
	}
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Persist flushes stores that buffer writes. Failures are logged only.
func (a *Adapter) Persist(ctx context.Context) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	store, ok := a.cap.Store()
	if !ok {
		return
	}
	p, ok := store.(Persister)
	if !ok {
		return
	}
	start := time.Now()
	if err := p.Persist(ctx); err != nil {
		a.logger.Error("failed to persist memories", zap.Error(err))
		a.metrics.ObserveMemoryError("persist")
		return
	}
	a.metrics.ObserveStage("memory_persist", time.Since(start))
}

// Reinit points the adapter at a new storage location. Calling it with the current
// location while available is a no-op. On failure the adapter is left Unavailable
// and the error is returned for display.
func (a *Adapter) Reinit(ctx context.Context, location string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.cap.Store(); ok && location == a.location {
		return nil
	}
	if old, ok := a.cap.Store(); ok {
		if err := old.Close(); err != nil {
			a.logger.Warn("close previous memory store", zap.Error(err))
		}
	}
	a.location = location
	a.cap = a.openLocked(ctx, location)
	if _, ok := a.cap.Store(); !ok {
		return fmt.Errorf("%w: %s", ErrUnavailable, a.cap.Reason())
	}
	return nil
}

// Export returns every stored record.
func (a *Adapter) Export(ctx context.Context) ([]Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	store, ok := a.cap.Store()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, a.cap.Reason())
	}
	records, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export memories: %w", err)
	}
	return records, nil
}

// Import adds records under freshly generated ids and persists once at the end.
// It stops at the first store error and reports how many records were added.
func (a *Adapter) Import(ctx context.Context, records []Record) (int, error) {
	a.mu.RLock()
	store, ok := a.cap.Store()
	if !ok {
		reason := a.cap.Reason()
		a.mu.RUnlock()
		return 0, fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}
	n := 0
	for _, r := range records {
		rec := Record{ID: a.ids.Next(), Text: r.Text, Metadata: cloneMetadata(r.Metadata)}
		if err := store.Add(ctx, rec); err != nil {
			a.mu.RUnlock()
			a.metrics.ObserveMemoryError("import")
			return n, fmt.Errorf("import record %d: %w", n, err)
		}
		n++
	}
	a.mu.RUnlock()

	a.Persist(ctx)
	return n, nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	store, ok := a.cap.Store()
	if !ok {
		return nil
	}
	a.cap = Unavailable("closed")
	return store.Close()
}
