package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/backlogctx-mcp/internal/config"
	"github.com/dshills/backlogctx-mcp/internal/embedder"
	"github.com/dshills/backlogctx-mcp/pkg/types"
)

func testIndex(t *testing.T, lazy *embedder.Lazy) *Index {
	t.Helper()
	cfg := config.Default()
	cfg.Snapshot.Debounce = 10 * time.Millisecond
	ix := New(cfg.Search, cfg.Snapshot, NewMemoryStore(), lazy, slog.Default())
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func item(id, title, description string, updated time.Time) *types.WorkItem {
	return &types.WorkItem{
		ID:          id,
		Title:       title,
		Status:      types.StatusInProgress,
		Type:        types.TypeForID(id),
		Description: description,
		CreatedAt:   updated.Add(-time.Hour),
		UpdatedAt:   updated,
	}
}

func seed(t *testing.T, ix *Index) {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	items := []*types.WorkItem{
		item("TASK-0001", "Backlog grooming checklist", "Weekly backlog review ritual", now.Add(1*time.Hour)),
		item("TASK-0002", "Backlog MCP server integration", "Expose the backlog over MCP tools", now.Add(2*time.Hour)),
		item("TASK-0003", "Deployment runbook", "Rolling deploy with health checks", now.Add(3*time.Hour)),
		item("EPIC-0005", "Retrieval engine", "Hybrid search with fusion", now),
	}
	for _, it := range items {
		require.NoError(t, ix.UpsertEntity(context.Background(), it))
	}
	require.NoError(t, ix.UpsertDocument(context.Background(), &types.Document{
		ID:      "doc://guides/search.md",
		Path:    "guides/search.md",
		Title:   "Search guide",
		Content: "How the backlog search ranks results",
	}))
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	ix := testIndex(t, nil)
	seed(t, ix)

	for _, q := range []string{"", "   ", "\t\n"} {
		hits, err := ix.Search(context.Background(), q, types.SearchOptions{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func TestSearchGoldenCoordination(t *testing.T) {
	// Only TASK-0002 contains both "backlog" and "mcp"; the coordination
	// bonus must rank it first even though TASK-0001 is backlog-heavy.
	ix := testIndex(t, nil)
	seed(t, ix)

	hits, err := ix.Search(context.Background(), "backlog mcp", types.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "TASK-0002", hits[0].ID())
}

func TestSearchTaggedUnion(t *testing.T) {
	ix := testIndex(t, nil)
	seed(t, ix)

	hits, err := ix.Search(context.Background(), "search", types.SearchOptions{Limit: 10})
	require.NoError(t, err)

	var sawEntity, sawDocument bool
	for _, h := range hits {
		switch h.Kind {
		case types.HitEntity:
			require.NotNil(t, h.Entity)
			require.Nil(t, h.Document)
			sawEntity = true
		case types.HitDocument:
			require.NotNil(t, h.Document)
			require.Nil(t, h.Entity)
			sawDocument = true
		}
	}
	assert.True(t, sawEntity)
	assert.True(t, sawDocument)
}

func TestSearchTypeFilter(t *testing.T) {
	ix := testIndex(t, nil)
	seed(t, ix)

	hits, err := ix.Search(context.Background(), "backlog", types.SearchOptions{
		Types: []string{"epic"},
		Limit: 10,
	})
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, types.TypeEpic, h.Entity.Type)
	}
}

func TestSearchRecentOrdersByUpdatedAt(t *testing.T) {
	ix := testIndex(t, nil)
	seed(t, ix)

	hits, err := ix.Search(context.Background(), "backlog", types.SearchOptions{
		Sort:  SortRecent,
		Types: []string{"task", "epic"},
		Limit: 10,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(hits), 2)

	for i := 1; i < len(hits); i++ {
		assert.False(t, hits[i].Entity.UpdatedAt.After(hits[i-1].Entity.UpdatedAt),
			"recent mode must order by updated_at descending")
	}
	// TASK-0002 is the newest backlog match and leads despite the
	// coordination bonus being skipped.
	assert.Equal(t, "TASK-0002", hits[0].ID())
}

func TestUpsertAbsentBehavesAsInsert(t *testing.T) {
	ix := testIndex(t, nil)

	it := item("TASK-0042", "Wire hydration pipeline", "", time.Now())
	require.NoError(t, ix.UpsertEntity(context.Background(), it))

	hits, err := ix.Search(context.Background(), "hydration", types.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "TASK-0042", hits[0].ID())
}

func TestUpsertReplacesPreviousTerms(t *testing.T) {
	ix := testIndex(t, nil)
	ctx := context.Background()

	require.NoError(t, ix.UpsertEntity(ctx, item("TASK-0042", "Original title words", "", time.Now())))
	require.NoError(t, ix.UpsertEntity(ctx, item("TASK-0042", "Replacement phrasing", "", time.Now())))

	hits, err := ix.Search(ctx, "original", types.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.Search(ctx, "replacement", types.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	ix := testIndex(t, nil)
	ix.RemoveEntity("TASK-9999")
	ix.RemoveDocument("doc://missing")

	entities, documents, _, _ := ix.Counts()
	assert.Zero(t, entities)
	assert.Zero(t, documents)
}

func TestUpsertRejectsMalformedID(t *testing.T) {
	ix := testIndex(t, nil)
	err := ix.UpsertEntity(context.Background(), &types.WorkItem{ID: "TASK-42", Title: "too few digits"})
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestMutationInvalidatesCache(t *testing.T) {
	ix := testIndex(t, nil)
	seed(t, ix)
	ctx := context.Background()

	first, err := ix.Search(ctx, "backlog", types.SearchOptions{Limit: 10})
	require.NoError(t, err)
	firstLen := len(first)

	require.NoError(t, ix.UpsertEntity(ctx, item("TASK-0099", "Another backlog entry", "", time.Now())))

	second, err := ix.Search(ctx, "backlog", types.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, firstLen+1, len(second))
}

func TestVectorSideWithLocalEmbedder(t *testing.T) {
	lazy := embedder.NewLazy(embedder.Config{Provider: embedder.ProviderLocal}, slog.Default())
	ix := testIndex(t, lazy)
	seed(t, ix)

	assert.True(t, ix.EmbeddingsAvailable())
	_, _, entityVectors, documentVectors := ix.Counts()
	assert.Equal(t, 4, entityVectors)
	assert.Equal(t, 1, documentVectors)

	hits, err := ix.Search(context.Background(), "backlog mcp", types.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "TASK-0002", hits[0].ID())
}

func TestDegradedEmbedderStaysLexical(t *testing.T) {
	// OpenAI provider with no key fails init; searches silently degrade.
	lazy := embedder.NewLazy(embedder.Config{Provider: embedder.ProviderOpenAI}, slog.Default())
	ix := testIndex(t, lazy)
	seed(t, ix)

	hits, err := ix.Search(context.Background(), "backlog", types.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	assert.False(t, ix.EmbeddingsAvailable())
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Snapshot.Debounce = 5 * time.Millisecond
	store := NewMemoryStore()

	ix := New(cfg.Search, cfg.Snapshot, store, nil, slog.Default())
	seed(t, ix)
	ix.Flush()

	// A fresh index over the same store restores the corpus.
	restored := New(cfg.Search, cfg.Snapshot, store, nil, slog.Default())
	require.True(t, restored.Load(context.Background()))

	entities, documents, _, _ := restored.Counts()
	assert.Equal(t, 4, entities)
	assert.Equal(t, 1, documents)

	hits, err := restored.Search(context.Background(), "backlog mcp", types.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "TASK-0002", hits[0].ID())
}

func TestSnapshotVersionMismatchForcesRebuild(t *testing.T) {
	cfg := config.Default()
	store := NewMemoryStore()

	stale, err := json.Marshal(map[string]any{"version": "backlogctx/0"})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), stale))

	ix := New(cfg.Search, cfg.Snapshot, store, nil, slog.Default())
	assert.False(t, ix.Load(context.Background()))
}

func TestSnapshotCorruptPayloadForcesRebuild(t *testing.T) {
	cfg := config.Default()
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), []byte("not json")))

	ix := New(cfg.Search, cfg.Snapshot, store, nil, slog.Default())
	assert.False(t, ix.Load(context.Background()))
}

func TestLoadEmptyStoreReportsRebuild(t *testing.T) {
	cfg := config.Default()
	ix := New(cfg.Search, cfg.Snapshot, NewMemoryStore(), nil, slog.Default())
	assert.False(t, ix.Load(context.Background()))
}

func TestDebouncedPersistCoalesces(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore()}

	cfg := config.Default()
	cfg.Snapshot.Debounce = 30 * time.Millisecond
	ix := New(cfg.Search, cfg.Snapshot, store, nil, slog.Default())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, ix.UpsertEntity(ctx, item("TASK-0001", "Burst mutation", "", time.Now())))
	}

	require.Eventually(t, func() bool { return store.writes.Load() >= 1 }, time.Second, 5*time.Millisecond)
	// The burst coalesced into a single write.
	assert.Equal(t, int32(1), store.writes.Load())
}

func TestFlushRunsPendingWrite(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore()}

	cfg := config.Default()
	cfg.Snapshot.Debounce = time.Hour // would never fire on its own
	ix := New(cfg.Search, cfg.Snapshot, store, nil, slog.Default())

	require.NoError(t, ix.UpsertEntity(context.Background(), item("TASK-0001", "Pending", "", time.Now())))
	ix.Flush()
	assert.Equal(t, int32(1), store.writes.Load())
}

// countingStore wraps a SnapshotStore and counts Save calls.
type countingStore struct {
	inner  SnapshotStore
	writes atomic.Int32
}

func (c *countingStore) Load(ctx context.Context) ([]byte, error) { return c.inner.Load(ctx) }
func (c *countingStore) Save(ctx context.Context, payload []byte) error {
	c.writes.Add(1)
	return c.inner.Save(ctx, payload)
}
func (c *countingStore) Close() error { return c.inner.Close() }
