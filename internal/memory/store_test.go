package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorMonotonicWhenClockStalls(t *testing.T) {
	fixed := time.Unix(0, 1000)
	g := &IDGenerator{now: func() time.Time { return fixed }}
	assert.Equal(t, "mem_1000", g.Next())
	assert.Equal(t, "mem_1001", g.Next())
	assert.Equal(t, "mem_1002", g.Next())
}

func TestIDGeneratorUniqueAcrossGoroutines(t *testing.T) {
	g := NewIDGenerator()
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				id := g.Next()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 4000)
}

func TestCapability(t *testing.T) {
	s, _ := NewInMemoryStore("")
	c := Available(s)
	got, ok := c.Store()
	assert.True(t, ok)
	assert.Same(t, s, got)
	assert.Empty(t, c.Reason())

	u := Unavailable("disk gone")
	_, ok = u.Store()
	assert.False(t, ok)
	assert.Equal(t, "disk gone", u.Reason())

	assert.Equal(t, "not configured", Capability{}.Reason())
}

func TestHashEmbedderIsNormalizedAndDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "My dog Rex")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "my DOG rex!")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var sum float64
	for _, x := range a {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	empty, err := e.Embed(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, float32(1), empty[0])
}

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	inner Embedder
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Embed(ctx, text)
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{inner: NewHashEmbedder(32)}
	e, err := NewCachedEmbedder(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	first, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	e.Wait()
	second, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestChromemStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewChromemStore(dir, "test_memories", NewHashEmbedder(128))
	require.NoError(t, err)

	// Empty collection: k is clamped instead of erroring.
	got, err := s.Query(ctx, "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Add(ctx, Record{ID: "mem_1", Text: "my favourite colour is green", Metadata: Metadata{"type": "user", "turn": 3.0}}))
	require.NoError(t, s.Add(ctx, Record{ID: "mem_2", Text: "the train leaves at noon", Metadata: Metadata{"type": "assistant"}}))

	got, err = s.Query(ctx, "what is my favourite colour", 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mem_1", got[0].ID)
	assert.Equal(t, 3.0, got[0].Metadata["turn"])

	// Reopen from disk.
	reopened, err := NewChromemStore(dir, "test_memories", NewHashEmbedder(128))
	require.NoError(t, err)
	all, err := reopened.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "mem_1", all[0].ID)
	assert.Equal(t, "the train leaves at noon", all[1].Text)
}

func TestChromemStoreKeepsEmptyMetadata(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", "", NewHashEmbedder(16))
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, Record{ID: "a", Text: "empty", Metadata: Metadata{}}))
	require.NoError(t, s.Add(ctx, Record{ID: "b", Text: "absent"}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	byText := map[string]Metadata{}
	for _, r := range all {
		byText[r.Text] = r.Metadata
	}
	assert.NotNil(t, byText["empty"])
	assert.Empty(t, byText["empty"])
	assert.Nil(t, byText["absent"])

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []Record{{ID: "a", Text: "empty", Metadata: byText["empty"]}}))
	assert.Contains(t, buf.String(), `"metadata": {}`)
}

func TestParseMetadataKeepsEmptyObject(t *testing.T) {
	assert.NotNil(t, parseMetadata(`{}`))
	assert.Nil(t, parseMetadata(`null`))
	assert.Equal(t, Metadata{"type": "user"}, parseMetadata(`{"type":"user"}`))
}

func TestChromemStoreRejectsNestedMetadata(t *testing.T) {
	s, err := NewChromemStore("", "", NewHashEmbedder(16))
	require.NoError(t, err)
	err = s.Add(context.Background(), Record{ID: "x", Text: "t", Metadata: Metadata{"nested": map[string]any{"a": 1}}})
	assert.Error(t, err)
}

func TestInMemoryStoreSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewInMemoryStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, Record{ID: "mem_1", Text: "remember the milk", Metadata: Metadata{"type": "user"}}))
	require.NoError(t, s.Persist(ctx))

	loaded, err := NewInMemoryStore(dir)
	require.NoError(t, err)
	all, err := loaded.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "remember the milk", all[0].Text)
}

func TestReadJSONAcceptsLegacyMetaKey(t *testing.T) {
	records, err := ReadJSON(strings.NewReader(`[{"id":"a","text":"hello","meta":{"type":"user"}}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user", records[0].Metadata["type"])
}

func TestOpenNoneIsUnavailable(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "none"}, "")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Open(context.Background(), Options{Backend: "postgres"}, "")
	assert.Error(t, err)

	s, err := Open(context.Background(), Options{Backend: "memory"}, "")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
