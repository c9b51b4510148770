package hydrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// semanticResult carries the enrichment hits split by variant, each capped
// independently.
type semanticResult struct {
	entities  []scoredItem
	documents []scoredDoc
}

type scoredItem struct {
	item  *types.WorkItem
	score float64
}

type scoredDoc struct {
	doc     *types.Document
	score   float64
	snippet string
}

// enrich issues one retrieval call with the focal's title and description
// and keeps up to cfg.SemanticCap entities and cfg.SemanticCap documents
// not already claimed by an earlier stage. Retrieval failure degrades to an
// empty enrichment; it never fails the pipeline.
func (h *Hydrator) enrich(ctx context.Context, focal *types.WorkItem, v visited) *semanticResult {
	query := strings.TrimSpace(focal.Title + " " + focal.Description)
	if query == "" {
		return &semanticResult{}
	}

	hits, err := h.searcher.Search(ctx, query, types.SearchOptions{
		Types: []string{string(types.TypeTask), string(types.TypeEpic), "document"},
		Limit: h.cfg.SemanticCap * 4,
	})
	if err != nil {
		h.logger.Warn("semantic enrichment degraded", slog.String("error", err.Error()))
		return &semanticResult{}
	}

	res := &semanticResult{}
	for _, hit := range hits {
		switch hit.Kind {
		case types.HitEntity:
			if hit.Entity == nil || len(res.entities) >= h.cfg.SemanticCap {
				continue
			}
			if !v.add(hit.Entity.ID) {
				continue
			}
			res.entities = append(res.entities, scoredItem{item: hit.Entity, score: hit.Score})
		case types.HitDocument:
			if hit.Document == nil || len(res.documents) >= h.cfg.SemanticCap {
				continue
			}
			if !v.add(hit.Document.ID) {
				continue
			}
			res.documents = append(res.documents, scoredDoc{doc: hit.Document, score: hit.Score, snippet: hit.Snippet})
		}
	}
	return res
}
