package types

// FocalSource records how the focal entity of a hydration request was
// resolved.
type FocalSource string

const (
	FocalFromID     FocalSource = "id"
	FocalFromSearch FocalSource = "search"
)

// HydrationMetadata describes how a hydration response was assembled.
type HydrationMetadata struct {
	Depth             int         `json:"depth"`
	TotalItems        int         `json:"total_items"`
	TokenEstimate     int         `json:"token_estimate"`
	Truncated         bool        `json:"truncated"`
	StagesExecuted    []string    `json:"stages_executed"`
	FocalResolvedFrom FocalSource `json:"focal_resolved_from"`
}

// HydrationResult is the full context bundle for one focal entity. It is
// constructed fresh per request and discarded after serialization; no
// hydration state survives across requests.
type HydrationResult struct {
	Focal  ContextEntity  `json:"focal"`
	Parent *ContextEntity `json:"parent,omitempty"`

	Children    []ContextEntity `json:"children,omitempty"`
	Siblings    []ContextEntity `json:"siblings,omitempty"`
	Ancestors   []ContextEntity `json:"ancestors,omitempty"`
	Descendants []ContextEntity `json:"descendants,omitempty"`

	CrossReferenced []ContextEntity `json:"cross_referenced,omitempty"`
	ReferencedBy    []ContextEntity `json:"referenced_by,omitempty"`

	Related          []ContextEntity   `json:"related,omitempty"`
	RelatedResources []ContextDocument `json:"related_resources,omitempty"`

	Activity       []ActivityEntry `json:"activity,omitempty"`
	SessionSummary *SessionSummary `json:"session_summary,omitempty"`

	Metadata HydrationMetadata `json:"metadata"`
}

// CountItems returns the sum of all result-array lengths plus one when a
// session summary is present, the value reported as metadata.total_items.
// Focal and parent are scalar fields and are not counted.
func (r *HydrationResult) CountItems() int {
	n := len(r.Children) + len(r.Siblings) + len(r.Ancestors) + len(r.Descendants)
	n += len(r.CrossReferenced) + len(r.ReferencedBy)
	n += len(r.Related) + len(r.RelatedResources)
	n += len(r.Activity)
	if r.SessionSummary != nil {
		n++
	}
	return n
}
