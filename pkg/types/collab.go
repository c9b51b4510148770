package types

import "context"

// ListFilter narrows an EntityStore listing.
type ListFilter struct {
	// ParentID restricts the listing to direct children of the given id.
	ParentID string
	// Limit caps the number of items returned; zero means no cap.
	Limit int
}

// EntityStore is the host-supplied durable storage contract. Lookup returns
// ErrNotFound for absent ids; listings are unordered snapshots.
type EntityStore interface {
	LookupEntity(ctx context.Context, id string) (*WorkItem, error)
	ListEntities(ctx context.Context, filter ListFilter) ([]*WorkItem, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
}

// ReadOptions narrows an operation-log read.
type ReadOptions struct {
	EntityID string
	Limit    int
}

// OperationLog is the read interface over the host's operation log. Entries
// come back in reverse-chronological order. The log's persistence is owned
// elsewhere; the engine only reads.
type OperationLog interface {
	ReadOperations(ctx context.Context, opts ReadOptions) ([]OperationLogEntry, error)
}

// HitKind tags the variant carried by a SearchHit.
type HitKind string

const (
	HitEntity   HitKind = "entity"
	HitDocument HitKind = "document"
)

// SearchHit is one ranked search result. Exactly one of Entity or Document
// is set, discriminated by Kind; results are never re-inspected by shape
// once they cross this boundary.
type SearchHit struct {
	Kind     HitKind   `json:"kind"`
	Entity   *WorkItem `json:"entity,omitempty"`
	Document *Document `json:"document,omitempty"`
	Score    float64   `json:"score"`
	Snippet  string    `json:"snippet,omitempty"`

	// MatchedFields lists the fields the query matched anywhere, from
	// snippet generation.
	MatchedFields []string `json:"matched_fields,omitempty"`
}

// ID returns the id of whichever variant the hit carries.
func (h *SearchHit) ID() string {
	switch h.Kind {
	case HitEntity:
		if h.Entity != nil {
			return h.Entity.ID
		}
	case HitDocument:
		if h.Document != nil {
			return h.Document.ID
		}
	}
	return ""
}

// SearchOptions narrows a unified search.
type SearchOptions struct {
	// Types restricts hits to the given work-item types; "document" is the
	// pseudo-type selecting documents.
	Types []string
	// Status filters entities by status.
	Status WorkItemStatus
	// ParentID filters entities by direct parent.
	ParentID string
	// Limit caps the ranked result count; zero applies the engine default.
	Limit int
	// Sort is "relevant" (fused ranking, default) or "recent" (native
	// updated_at ordering, no fusion).
	Sort string
}

// ContextSearcher is the free-text retrieval contract consumed by semantic
// enrichment and focal-by-query resolution. The retrieval index implements
// it; a host may substitute its own.
type ContextSearcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchHit, error)
}
