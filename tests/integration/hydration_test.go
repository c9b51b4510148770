// Package integration exercises the full engine stack: corpus seeding, the
// snapshot-backed retrieval index with a local embedder, and the hydration
// pipeline, wired the same way the MCP server wires them.
package integration

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/backlogctx-mcp/internal/config"
	"github.com/dshills/backlogctx-mcp/internal/embedder"
	"github.com/dshills/backlogctx-mcp/internal/hydrate"
	"github.com/dshills/backlogctx-mcp/internal/index"
	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// corpusStore is a minimal host-side binding of the collaborator contracts.
type corpusStore struct {
	entities  map[string]*types.WorkItem
	documents []*types.Document
	log       []types.OperationLogEntry
}

func (s *corpusStore) LookupEntity(_ context.Context, id string) (*types.WorkItem, error) {
	item, ok := s.entities[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return item, nil
}

func (s *corpusStore) ListEntities(_ context.Context, filter types.ListFilter) ([]*types.WorkItem, error) {
	var out []*types.WorkItem
	for _, item := range s.entities {
		if filter.ParentID != "" && item.Parent() != filter.ParentID {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *corpusStore) ListDocuments(_ context.Context) ([]*types.Document, error) {
	return s.documents, nil
}

func (s *corpusStore) ReadOperations(_ context.Context, opts types.ReadOptions) ([]types.OperationLogEntry, error) {
	var out []types.OperationLogEntry
	for i := len(s.log) - 1; i >= 0; i-- {
		e := s.log[i]
		if opts.EntityID != "" && e.EntityID != opts.EntityID {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func seedCorpus() *corpusStore {
	mk := func(id, title, parent, description string, refs ...types.Reference) *types.WorkItem {
		return &types.WorkItem{
			ID:          id,
			Title:       title,
			Status:      types.StatusInProgress,
			Type:        types.TypeForID(id),
			ParentID:    parent,
			Description: description,
			References:  refs,
			CreatedAt:   time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		}
	}

	base := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	return &corpusStore{
		entities: map[string]*types.WorkItem{
			"EPIC-0005": mk("EPIC-0005", "Search quality epic", "", "Improve retrieval over the backlog corpus"),
			"TASK-0042": mk("TASK-0042", "Backlog MCP server integration", "EPIC-0005",
				"Wire the hydration engine into an MCP transport",
				types.Reference{URL: "backlog://TASK-0200", Title: "benchmark harness"}),
			"TASK-0043": mk("TASK-0043", "Add golden ranking fixtures", "EPIC-0005", "Fixture corpus for fusion weights"),
			"TASK-0044": mk("TASK-0044", "Document scoring pipeline", "EPIC-0005", "Normalization and coordination bonus"),
			"TASK-0100": mk("TASK-0100", "Collect relevance judgments", "TASK-0042", "Label pilot queries"),
			"TASK-0101": mk("TASK-0101", "Sweep fusion weight grid", "TASK-0042", "Grid search over text and vector weights"),
			"TASK-0200": mk("TASK-0200", "Ranking benchmark harness", "", "Replay judged queries against the index",
				types.Reference{URL: "backlog://TASK-0042"}),
		},
		documents: []*types.Document{
			{ID: "doc://notes/task-0042-design.md", Path: "notes/task-0042-design.md", Title: "Integration design note", Content: "transport, stdio, tool surface"},
			{ID: "doc://guides/ranking.md", Path: "guides/ranking.md", Title: "Ranking guide", Content: "normalize fuse coordination bonus backlog search"},
		},
		log: []types.OperationLogEntry{
			{Timestamp: base.Add(-40 * time.Minute), Tool: "set_status", EntityID: "TASK-0042", Actor: "agent-7", ActorType: "agent", ChangedFields: []string{"status"}},
			{Timestamp: base.Add(-10 * time.Minute), Tool: "append_evidence", EntityID: "TASK-0042", Actor: "agent-7", ActorType: "agent", ChangedFields: []string{"evidence"}},
			{Timestamp: base, Tool: "set_status", EntityID: "TASK-0042", Actor: "agent-7", ActorType: "agent", ChangedFields: []string{"status"}},
		},
	}
}

func buildStack(t *testing.T, store *corpusStore, snapStore index.SnapshotStore) (*index.Index, *hydrate.Hydrator) {
	t.Helper()
	cfg := config.Default()

	lazy := embedder.NewLazy(embedder.Config{Provider: "local", CacheSize: 100}, nil)
	idx := index.New(cfg.Search, cfg.Snapshot, snapStore, lazy, nil)

	ctx := context.Background()
	if !idx.Load(ctx) {
		entities, err := store.ListEntities(ctx, types.ListFilter{})
		require.NoError(t, err)
		documents, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		idx.Reindex(ctx, entities, documents)
	}

	return idx, hydrate.New(cfg.Hydration, store, idx, store, nil)
}

func TestEndToEndHydration(t *testing.T) {
	store := seedCorpus()
	idx, hydrator := buildStack(t, store, index.NewMemoryStore())
	defer idx.Close()
	ctx := context.Background()

	t.Run("depth one neighborhood under a wide budget", func(t *testing.T) {
		result, err := hydrator.Hydrate(ctx, hydrate.Request{ID: "TASK-0042", Depth: 1, MaxTokens: 100000})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, types.FidelityFull, result.Focal.Fidelity)
		require.NotNil(t, result.Parent)
		assert.Equal(t, "EPIC-0005", result.Parent.ID)
		assert.Len(t, result.Children, 2)
		assert.Len(t, result.Siblings, 2)
		assert.False(t, result.Metadata.Truncated)
		assert.Equal(t, result.CountItems(), result.Metadata.TotalItems)
	})

	t.Run("tight budget keeps focal at full fidelity", func(t *testing.T) {
		result, err := hydrator.Hydrate(ctx, hydrate.Request{ID: "TASK-0042", MaxTokens: 200})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.True(t, result.Metadata.Truncated)
		assert.LessOrEqual(t, result.Metadata.TokenEstimate, 250)
		assert.Equal(t, types.FidelityFull, result.Focal.Fidelity)
	})

	t.Run("semantic enrichment and activity through the real index", func(t *testing.T) {
		result, err := hydrator.Hydrate(ctx, hydrate.Request{
			ID: "TASK-0042", MaxTokens: 100000,
			IncludeRelated: true, IncludeActivity: true,
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Contains(t, result.Metadata.StagesExecuted, "semantic")
		assert.Contains(t, result.Metadata.StagesExecuted, "activity")
		assert.Contains(t, result.Metadata.StagesExecuted, "session")

		require.NotNil(t, result.SessionSummary)
		assert.Equal(t, "agent-7", result.SessionSummary.Actor)
		// First two entries are 10 minutes apart, the third is 30 minutes
		// earlier still, so the session spans only the newest two.
		assert.Equal(t, 2, result.SessionSummary.OperationCount)

		for _, rel := range result.Related {
			assert.NotEqual(t, result.Focal.ID, rel.ID)
		}
	})

	t.Run("focal resolution by query", func(t *testing.T) {
		result, err := hydrator.Hydrate(ctx, hydrate.Request{Query: "backlog mcp", MaxTokens: 100000})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "TASK-0042", result.Focal.ID)
		assert.Equal(t, types.FocalFromSearch, result.Metadata.FocalResolvedFrom)
	})

	t.Run("mutual references stay disjoint", func(t *testing.T) {
		result, err := hydrator.Hydrate(ctx, hydrate.Request{ID: "TASK-0042", MaxTokens: 100000})
		require.NoError(t, err)
		require.NotNil(t, result)

		var forward []string
		for _, e := range result.CrossReferenced {
			forward = append(forward, e.ID)
		}
		assert.Equal(t, []string{"TASK-0200"}, forward)
		for _, e := range result.ReferencedBy {
			assert.NotEqual(t, "TASK-0200", e.ID)
		}
	})
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	store := seedCorpus()
	snapStore := index.NewMemoryStore()

	idx, _ := buildStack(t, store, snapStore)
	idx.Flush()
	require.NoError(t, idx.Close())

	// Same snapshot store, fresh index: startup must load instead of
	// rebuilding.
	cfg := config.Default()
	lazy := embedder.NewLazy(embedder.Config{Provider: "local", CacheSize: 100}, nil)
	reopened := index.New(cfg.Search, cfg.Snapshot, snapStore, lazy, nil)
	defer reopened.Close()

	require.True(t, reopened.Load(context.Background()))

	hits, err := reopened.Search(context.Background(), "backlog mcp", types.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "TASK-0042", hits[0].ID())
}
