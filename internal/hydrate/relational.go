package hydrate

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// relations holds the raw relational neighborhood of a focal item before
// fidelity projection and budget packing. The role arrays are mutually
// exclusive: an id claimed by one never appears in another.
type relations struct {
	parent      *types.WorkItem
	children    []*types.WorkItem
	siblings    []*types.WorkItem
	ancestors   []depthItem
	descendants []depthItem
	documents   []*types.Document
}

// depthItem pairs a work item with its hop distance from the focal.
type depthItem struct {
	item  *types.WorkItem
	depth int
}

// expandRelations walks the parent/child hierarchy around focal. Depth 1
// resolves parent, children and siblings; depth 2 and 3 extend to ancestors
// and descendants with graph_depth equal to the hop count. The visited set
// is both consulted and extended; claim order fixes role precedence at
// parent, children, siblings, ancestors, descendants.
func (h *Hydrator) expandRelations(ctx context.Context, focal *types.WorkItem, depth int, v visited) (*relations, error) {
	rel := &relations{}

	if pid := focal.Parent(); pid != "" {
		parent, err := h.store.LookupEntity(ctx, pid)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		// A dangling parent reference is a data-quality issue, not a
		// pipeline failure.
		if parent != nil {
			rel.parent = parent
			v.add(parent.ID)
		}
	}

	children, err := h.store.ListEntities(ctx, types.ListFilter{ParentID: focal.ID})
	if err != nil {
		return nil, err
	}
	sortItems(children)
	for _, c := range children {
		if v.add(c.ID) {
			rel.children = append(rel.children, c)
		}
	}

	if rel.parent != nil {
		peers, err := h.store.ListEntities(ctx, types.ListFilter{ParentID: rel.parent.ID})
		if err != nil {
			return nil, err
		}
		sortItems(peers)
		for _, p := range peers {
			if v.add(p.ID) {
				rel.siblings = append(rel.siblings, p)
			}
		}
	}

	if depth >= 2 {
		if err := h.walkAncestors(ctx, rel, depth, v); err != nil {
			return nil, err
		}
		if err := h.walkDescendants(ctx, rel, depth, v); err != nil {
			return nil, err
		}
	}

	docs, err := h.relatedDocuments(ctx, focal, rel)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		v.add(d.ID)
	}
	rel.documents = docs
	return rel, nil
}

// walkAncestors follows parent references upward from the resolved parent.
// Each hop past the first lands in ancestors with graph_depth = hop. The
// walk stops at the requested depth, a missing link, or a cycle (the
// visited check refuses to re-claim an id already seen on the way up).
func (h *Hydrator) walkAncestors(ctx context.Context, rel *relations, depth int, v visited) error {
	current := rel.parent
	for hop := 2; hop <= depth && current != nil; hop++ {
		pid := current.Parent()
		if pid == "" || v.has(pid) {
			return nil
		}
		next, err := h.store.LookupEntity(ctx, pid)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v.add(next.ID)
		rel.ancestors = append(rel.ancestors, depthItem{item: next, depth: hop})
		current = next
	}
	return nil
}

// walkDescendants breadth-first expands the children's subtrees. Hop 2 is
// grandchildren of the focal. Visited ids are skipped so a descendant never
// duplicates a child or sibling.
func (h *Hydrator) walkDescendants(ctx context.Context, rel *relations, depth int, v visited) error {
	frontier := rel.children
	for hop := 2; hop <= depth && len(frontier) > 0; hop++ {
		var next []*types.WorkItem
		for _, parent := range frontier {
			kids, err := h.store.ListEntities(ctx, types.ListFilter{ParentID: parent.ID})
			if err != nil {
				return err
			}
			sortItems(kids)
			for _, k := range kids {
				if !v.add(k.ID) {
					continue
				}
				rel.descendants = append(rel.descendants, depthItem{item: k, depth: hop})
				next = append(next, k)
			}
		}
		frontier = next
	}
	return nil
}

// relatedDocuments discovers backlog documents whose path mentions the
// focal id, the parent id, or any ancestor id. Matching is case-insensitive
// substring over the document path.
func (h *Hydrator) relatedDocuments(ctx context.Context, focal *types.WorkItem, rel *relations) ([]*types.Document, error) {
	docs, err := h.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	wanted := []string{strings.ToLower(focal.ID)}
	if rel.parent != nil {
		wanted = append(wanted, strings.ToLower(rel.parent.ID))
	}
	for _, a := range rel.ancestors {
		wanted = append(wanted, strings.ToLower(a.item.ID))
	}

	var matched []*types.Document
	for _, d := range docs {
		path := strings.ToLower(d.Path)
		for _, id := range wanted {
			if strings.Contains(path, id) {
				matched = append(matched, d)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })
	return matched, nil
}

// sortItems orders work items by id for deterministic role assignment over
// unordered store listings.
func sortItems(items []*types.WorkItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
