package hydrate

import (
	"context"
	"errors"
	"sort"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// crossRefs holds the resolved explicit-link neighborhood. forward is what
// the focal (and its parent) point at; reverse is who points at the focal.
// The two sets are disjoint because forward claims its ids before reverse
// runs.
type crossRefs struct {
	forward []*types.WorkItem
	reverse []*types.WorkItem
}

// resolveCrossReferences runs forward then reverse resolution, capping each
// direction at cfg.CrossRefCap. An unresolvable or self-pointing reference
// is skipped silently.
func (h *Hydrator) resolveCrossReferences(ctx context.Context, focal, parent *types.WorkItem, v visited) (*crossRefs, error) {
	xref := &crossRefs{}

	forward, err := h.resolveForward(ctx, focal, parent, v)
	if err != nil {
		return nil, err
	}
	xref.forward = forward

	reverse, err := h.resolveReverse(ctx, focal, v)
	if err != nil {
		return nil, err
	}
	xref.reverse = reverse
	return xref, nil
}

// resolveForward extracts id-shaped candidates from the reference values of
// the focal and its parent, resolves each, and claims the survivors in the
// visited set. Order of first appearance wins on duplicate extraction.
func (h *Hydrator) resolveForward(ctx context.Context, focal, parent *types.WorkItem, v visited) ([]*types.WorkItem, error) {
	candidates := referencedIDs(focal)
	if parent != nil {
		candidates = append(candidates, referencedIDs(parent)...)
	}

	var out []*types.WorkItem
	seen := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if len(out) >= h.cfg.CrossRefCap {
			break
		}
		if id == focal.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if v.has(id) {
			continue
		}
		item, err := h.store.LookupEntity(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		v.add(item.ID)
		out = append(out, item)
	}
	return out, nil
}

// resolveReverse builds a one-shot map from every referenced id to its
// referencing entities and reads off the focal's entries. The full listing
// is the price of not owning a reverse index; the map is request-scoped.
func (h *Hydrator) resolveReverse(ctx context.Context, focal *types.WorkItem, v visited) ([]*types.WorkItem, error) {
	all, err := h.store.ListEntities(ctx, types.ListFilter{})
	if err != nil {
		return nil, err
	}

	inbound := make(map[string][]*types.WorkItem)
	for _, item := range all {
		seen := make(map[string]struct{})
		for _, id := range referencedIDs(item) {
			if id == item.ID {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			inbound[id] = append(inbound[id], item)
		}
	}

	sources := inbound[focal.ID]
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })

	var out []*types.WorkItem
	for _, item := range sources {
		if len(out) >= h.cfg.CrossRefCap {
			break
		}
		if !v.add(item.ID) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// referencedIDs returns the id-shaped candidates embedded in an item's
// reference URLs and titles, in order of appearance.
func referencedIDs(item *types.WorkItem) []string {
	var ids []string
	for _, ref := range item.References {
		ids = append(ids, types.ExtractIDs(ref.URL)...)
		if ref.Title != "" {
			ids = append(ids, types.ExtractIDs(ref.Title)...)
		}
	}
	return ids
}
