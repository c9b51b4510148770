// Package hydrate assembles the token-bounded context bundle for one focal
// work item: focal resolution, relational expansion, cross-reference
// resolution, optional semantic enrichment, optional temporal overlay and
// session memory, and a strict-priority token budget packer.
//
// One hydration call is one sequential pipeline. The visited-id set is an
// explicit mutable accumulator threaded through the traversal stages for a
// single request; it is never shared across concurrent requests, and no
// hydration state survives the response.
package hydrate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dshills/backlogctx-mcp/internal/config"
	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// Stage names reported in metadata.stages_executed. A skipped optional
// stage is omitted, which is how callers detect degraded capability.
const (
	StageFocal     = "focal"
	StageRelations = "relations"
	StageCrossRef  = "cross_reference"
	StageSemantic  = "semantic"
	StageActivity  = "activity"
	StageSession   = "session"
	StageBudget    = "budget"
)

// Request describes one hydration call. Exactly one of ID or Query must be
// set; Query resolves the focal through search when no ID is given.
type Request struct {
	ID              string `json:"id,omitempty"`
	Query           string `json:"query,omitempty"`
	Depth           int    `json:"depth,omitempty"`
	MaxTokens       int    `json:"max_tokens,omitempty"`
	IncludeRelated  bool   `json:"include_related,omitempty"`
	IncludeActivity bool   `json:"include_activity,omitempty"`
}

// Hydrator sequences the pipeline stages. The entity store is required;
// searcher and operation log are optional collaborators whose absence
// silently skips the dependent stages.
type Hydrator struct {
	cfg      config.Hydration
	store    types.EntityStore
	searcher types.ContextSearcher
	oplog    types.OperationLog
	logger   *slog.Logger
}

// New creates a Hydrator. searcher and oplog may be nil.
func New(cfg config.Hydration, store types.EntityStore, searcher types.ContextSearcher, oplog types.OperationLog, logger *slog.Logger) *Hydrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hydrator{
		cfg:      cfg,
		store:    store,
		searcher: searcher,
		oplog:    oplog,
		logger:   logger.With(slog.String("component", "hydrate")),
	}
}

// Hydrate runs the full pipeline. A focal that cannot be resolved returns
// (nil, nil): "nothing found" is not an error. Only violated collaborator
// contracts fail hard.
func (h *Hydrator) Hydrate(ctx context.Context, req Request) (*types.HydrationResult, error) {
	if strings.TrimSpace(req.ID) == "" && strings.TrimSpace(req.Query) == "" {
		return nil, types.ErrEmptyQuery
	}

	depth := clampDepth(req.Depth, h.cfg)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = h.cfg.DefaultMaxTokens
	}

	focal, source, err := h.resolveFocal(ctx, req)
	if err != nil {
		return nil, err
	}
	if focal == nil {
		return nil, nil
	}
	stages := []string{StageFocal}

	// The visited accumulator for this request. Every traversal stage both
	// reads and extends it.
	visited := newVisited()
	visited.add(focal.ID)

	rel, err := h.expandRelations(ctx, focal, depth, visited)
	if err != nil {
		return nil, err
	}
	stages = append(stages, StageRelations)

	xref, err := h.resolveCrossReferences(ctx, focal, rel.parent, visited)
	if err != nil {
		return nil, err
	}
	stages = append(stages, StageCrossRef)

	var sem *semanticResult
	if req.IncludeRelated && h.searcher != nil {
		sem = h.enrich(ctx, focal, visited)
		stages = append(stages, StageSemantic)
	}

	var activity []types.ActivityEntry
	var session *types.SessionSummary
	if req.IncludeActivity && h.oplog != nil {
		activity = h.overlay(ctx, overlayIDs(focal, rel, xref))
		stages = append(stages, StageActivity)

		session = h.sessionMemory(ctx, focal.ID)
		if session != nil {
			stages = append(stages, StageSession)
		}
	}

	result := h.pack(focal, rel, xref, sem, activity, session, maxTokens)
	stages = append(stages, StageBudget)

	result.Metadata.Depth = depth
	result.Metadata.StagesExecuted = stages
	result.Metadata.FocalResolvedFrom = source
	result.Metadata.TotalItems = result.CountItems()
	return result, nil
}

// resolveFocal finds the focal work item either by direct lookup or by
// search. Absence is returned as a nil focal, never an error.
func (h *Hydrator) resolveFocal(ctx context.Context, req Request) (*types.WorkItem, types.FocalSource, error) {
	if id := strings.TrimSpace(req.ID); id != "" {
		item, err := h.store.LookupEntity(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.FocalFromID, nil
		}
		if err != nil {
			return nil, types.FocalFromID, err
		}
		return item, types.FocalFromID, nil
	}

	if h.searcher == nil {
		// No retrieval collaborator; query-based resolution degrades to
		// "nothing found".
		return nil, types.FocalFromSearch, nil
	}

	hits, err := h.searcher.Search(ctx, req.Query, types.SearchOptions{
		Types: []string{string(types.TypeTask), string(types.TypeEpic), string(types.TypeFolder), string(types.TypeArtifact), string(types.TypeMilestone)},
		Limit: 1,
	})
	if err != nil {
		return nil, types.FocalFromSearch, err
	}
	for _, hit := range hits {
		if hit.Kind == types.HitEntity && hit.Entity != nil {
			return hit.Entity, types.FocalFromSearch, nil
		}
	}
	return nil, types.FocalFromSearch, nil
}

// overlayIDs collects the ids whose operations feed the temporal overlay:
// the focal, its parent, direct children and forward cross-references.
func overlayIDs(focal *types.WorkItem, rel *relations, xref *crossRefs) []string {
	ids := []string{focal.ID}
	if rel.parent != nil {
		ids = append(ids, rel.parent.ID)
	}
	for _, c := range rel.children {
		ids = append(ids, c.ID)
	}
	for _, f := range xref.forward {
		ids = append(ids, f.ID)
	}
	return ids
}

// clampDepth bounds the requested depth to [1, max].
func clampDepth(depth int, cfg config.Hydration) int {
	if depth <= 0 {
		depth = cfg.DefaultDepth
	}
	if depth < 1 {
		depth = 1
	}
	if depth > cfg.MaxDepth {
		depth = cfg.MaxDepth
	}
	return depth
}

// visited is the per-request traversal accumulator. Stages call add to
// claim an id for their role array; a false return means some earlier
// stage already owns it.
type visited map[string]struct{}

func newVisited() visited {
	return make(visited)
}

// add claims id, reporting whether it was newly added.
func (v visited) add(id string) bool {
	if _, ok := v[id]; ok {
		return false
	}
	v[id] = struct{}{}
	return true
}

// has reports whether id was already claimed.
func (v visited) has(id string) bool {
	_, ok := v[id]
	return ok
}
