package types

import "time"

// Fidelity grades how much of an entity or document is projected into a
// hydration response. Ordering is full > summary > reference.
type Fidelity string

const (
	FidelityFull      Fidelity = "full"
	FidelitySummary   Fidelity = "summary"
	FidelityReference Fidelity = "reference"
)

// fidelityRank orders fidelity levels for downgrade comparisons.
func fidelityRank(f Fidelity) int {
	switch f {
	case FidelityFull:
		return 2
	case FidelitySummary:
		return 1
	default:
		return 0
	}
}

// NextLower returns the fidelity one step below f, or f itself when already
// at reference.
func (f Fidelity) NextLower() Fidelity {
	switch f {
	case FidelityFull:
		return FidelitySummary
	case FidelitySummary:
		return FidelityReference
	default:
		return FidelityReference
	}
}

// ContextEntity is a fidelity-graded projection of a WorkItem. The fidelity
// level strictly determines which fields are populated:
//
//   - full: every WorkItem field
//   - summary: drops description, evidence and blocked_reason; keeps
//     references and timestamps
//   - reference: only id, title, status and type
type ContextEntity struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Status   WorkItemStatus `json:"status"`
	Type     WorkItemType   `json:"type"`
	Fidelity Fidelity       `json:"fidelity"`

	ParentID      string      `json:"parent_id,omitempty"`
	Description   string      `json:"description,omitempty"`
	Evidence      []string    `json:"evidence,omitempty"`
	BlockedReason []string    `json:"blocked_reason,omitempty"`
	References    []Reference `json:"references,omitempty"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `json:"updated_at,omitempty"`

	RelevanceScore float64 `json:"relevance_score,omitempty"`
	GraphDepth     int     `json:"graph_depth,omitempty"`
}

// ProjectEntity builds a ContextEntity from a WorkItem at the given fidelity.
func ProjectEntity(item *WorkItem, f Fidelity) ContextEntity {
	e := ContextEntity{
		ID:       item.ID,
		Title:    item.Title,
		Status:   item.Status,
		Type:     item.Type,
		Fidelity: f,
	}
	if f == FidelityReference {
		return e
	}

	e.ParentID = item.Parent()
	e.References = item.References
	created := item.CreatedAt
	updated := item.UpdatedAt
	e.CreatedAt = &created
	e.UpdatedAt = &updated
	if f == FidelitySummary {
		return e
	}

	e.Description = item.Description
	e.Evidence = item.Evidence
	e.BlockedReason = item.BlockedReason
	return e
}

// Downgrade re-projects the entity at a lower fidelity. Fields already
// dropped stay dropped; asking for a higher fidelity than the current one
// returns the entity unchanged.
func (e ContextEntity) Downgrade(to Fidelity) ContextEntity {
	if fidelityRank(to) >= fidelityRank(e.Fidelity) {
		return e
	}

	out := ContextEntity{
		ID:             e.ID,
		Title:          e.Title,
		Status:         e.Status,
		Type:           e.Type,
		Fidelity:       to,
		RelevanceScore: e.RelevanceScore,
		GraphDepth:     e.GraphDepth,
	}
	if to == FidelitySummary {
		out.ParentID = e.ParentID
		out.References = e.References
		out.CreatedAt = e.CreatedAt
		out.UpdatedAt = e.UpdatedAt
	}
	return out
}

// ContextDocument is a fidelity-graded projection of a Document. Documents
// never appear at full fidelity in a hydration response; summary carries a
// bounded content excerpt, reference only identity fields.
type ContextDocument struct {
	ID       string   `json:"id"`
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Fidelity Fidelity `json:"fidelity"`

	Snippet        string  `json:"snippet,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// ProjectDocument builds a ContextDocument at the given fidelity. Full is
// clamped to summary.
func ProjectDocument(doc *Document, f Fidelity) ContextDocument {
	if f == FidelityFull {
		f = FidelitySummary
	}
	d := ContextDocument{
		ID:       doc.ID,
		Path:     doc.Path,
		Title:    doc.Title,
		Fidelity: f,
	}
	return d
}

// Downgrade drops the snippet when moving to reference fidelity.
func (d ContextDocument) Downgrade(to Fidelity) ContextDocument {
	if fidelityRank(to) >= fidelityRank(d.Fidelity) {
		return d
	}
	d.Fidelity = FidelityReference
	d.Snippet = ""
	return d
}
