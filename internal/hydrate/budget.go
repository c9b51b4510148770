package hydrate

import (
	"encoding/json"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// itemOverhead approximates the serialization framing cost per packed item
// (field name, punctuation, array position) on top of its own JSON size.
const itemOverhead = 8

// packer tracks remaining budget and whether anything was dropped or
// downgraded along the way.
type packer struct {
	remaining int
	used      int
	truncated bool
}

// pack projects the staged neighborhood into a HydrationResult under the
// token budget. Categories are admitted in strict priority order; focal and
// parent are admitted unconditionally, which is why token_estimate can
// slightly exceed a very small budget.
func (h *Hydrator) pack(focal *types.WorkItem, rel *relations, xref *crossRefs, sem *semanticResult, activity []types.ActivityEntry, session *types.SessionSummary, maxTokens int) *types.HydrationResult {
	p := &packer{remaining: maxTokens}
	result := &types.HydrationResult{}

	result.Focal = types.ProjectEntity(focal, types.FidelityFull)
	p.spend(estimateCost(result.Focal))

	if rel.parent != nil {
		parent := types.ProjectEntity(rel.parent, types.FidelitySummary)
		p.spend(estimateCost(parent))
		result.Parent = &parent
	}

	if session != nil {
		cost := estimateCost(*session)
		if cost <= p.remaining {
			p.spend(cost)
			result.SessionSummary = session
		} else {
			p.truncated = true
		}
	}

	result.Children = p.packEntities(projectAll(rel.children, types.FidelitySummary))
	result.Siblings = p.packEntities(projectAll(rel.siblings, types.FidelitySummary))
	result.CrossReferenced = p.packEntities(projectAll(xref.forward, types.FidelitySummary))
	result.ReferencedBy = p.packEntities(projectAll(xref.reverse, types.FidelitySummary))
	result.Ancestors = p.packEntities(projectDepth(rel.ancestors))
	result.Descendants = p.packEntities(projectDepth(rel.descendants))

	relationalDocs := make([]types.ContextDocument, 0, len(rel.documents))
	for _, d := range rel.documents {
		relationalDocs = append(relationalDocs, types.ProjectDocument(d, types.FidelitySummary))
	}
	result.RelatedResources = p.packDocuments(relationalDocs)

	if sem != nil {
		semEntities := make([]types.ContextEntity, 0, len(sem.entities))
		for _, si := range sem.entities {
			e := types.ProjectEntity(si.item, types.FidelitySummary)
			e.RelevanceScore = si.score
			semEntities = append(semEntities, e)
		}
		result.Related = p.packEntities(semEntities)

		semDocs := make([]types.ContextDocument, 0, len(sem.documents))
		for _, sd := range sem.documents {
			doc := types.ProjectDocument(sd.doc, types.FidelitySummary)
			doc.RelevanceScore = sd.score
			doc.Snippet = sd.snippet
			semDocs = append(semDocs, doc)
		}
		result.RelatedResources = append(result.RelatedResources, p.packDocuments(semDocs)...)
	}

	result.Activity = p.packActivity(activity)

	result.Metadata.TokenEstimate = p.used
	result.Metadata.Truncated = p.truncated
	return result
}

// packEntities admits one entity category. The whole category is tried at
// its projected fidelity, then downgraded a level at a time; once at
// reference fidelity, whatever prefix fits is kept and the rest dropped.
func (p *packer) packEntities(items []types.ContextEntity) []types.ContextEntity {
	if len(items) == 0 {
		return nil
	}

	for {
		if cost := estimateEntities(items); cost <= p.remaining {
			p.spend(cost)
			return items
		}
		lower := items[0].Fidelity.NextLower()
		if lower == items[0].Fidelity {
			break
		}
		// A downgrade that still fits everything is not a drop and does
		// not set truncated.
		for i := range items {
			items[i] = items[i].Downgrade(lower)
		}
	}

	// Reference fidelity still over budget: keep the longest prefix that
	// fits.
	p.truncated = true
	var kept []types.ContextEntity
	for _, item := range items {
		cost := estimateCost(item)
		if cost > p.remaining {
			break
		}
		p.spend(cost)
		kept = append(kept, item)
	}
	return kept
}

// packDocuments is drop-only: documents that do not fit are dropped without
// fidelity retry.
func (p *packer) packDocuments(docs []types.ContextDocument) []types.ContextDocument {
	var kept []types.ContextDocument
	for _, d := range docs {
		cost := estimateCost(d)
		if cost > p.remaining {
			p.truncated = true
			break
		}
		p.spend(cost)
		kept = append(kept, d)
	}
	return kept
}

// packActivity is drop-only, same policy as documents.
func (p *packer) packActivity(entries []types.ActivityEntry) []types.ActivityEntry {
	var kept []types.ActivityEntry
	for _, e := range entries {
		cost := estimateCost(e)
		if cost > p.remaining {
			p.truncated = true
			break
		}
		p.spend(cost)
		kept = append(kept, e)
	}
	return kept
}

// spend deducts cost, clamping the remainder at zero. Focal and parent are
// admitted before any budget check, so the deduction may overshoot.
func (p *packer) spend(cost int) {
	p.used += cost
	p.remaining -= cost
	if p.remaining < 0 {
		p.remaining = 0
	}
}

// estimateCost approximates the token cost of one serialized item as
// ceil(chars/4) plus fixed framing overhead.
func estimateCost(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return itemOverhead
	}
	return (len(b)+3)/4 + itemOverhead
}

func estimateEntities(items []types.ContextEntity) int {
	total := 0
	for _, item := range items {
		total += estimateCost(item)
	}
	return total
}

// projectAll projects a slice of work items at one fidelity.
func projectAll(items []*types.WorkItem, f types.Fidelity) []types.ContextEntity {
	if len(items) == 0 {
		return nil
	}
	out := make([]types.ContextEntity, 0, len(items))
	for _, item := range items {
		out = append(out, types.ProjectEntity(item, f))
	}
	return out
}

// projectDepth projects ancestor/descendant nodes at reference fidelity
// with their hop distance recorded as graph_depth.
func projectDepth(items []depthItem) []types.ContextEntity {
	if len(items) == 0 {
		return nil
	}
	out := make([]types.ContextEntity, 0, len(items))
	for _, di := range items {
		e := types.ProjectEntity(di.item, types.FidelityReference)
		e.GraphDepth = di.depth
		out = append(out, e)
	}
	return out
}
