package types

import (
	"regexp"
	"time"
)

// WorkItemType classifies a backlog entity.
type WorkItemType string

const (
	TypeTask      WorkItemType = "task"
	TypeEpic      WorkItemType = "epic"
	TypeFolder    WorkItemType = "folder"
	TypeArtifact  WorkItemType = "artifact"
	TypeMilestone WorkItemType = "milestone"
)

// WorkItemStatus is the lifecycle state of a work item.
type WorkItemStatus string

const (
	StatusBacklog    WorkItemStatus = "backlog"
	StatusReady      WorkItemStatus = "ready"
	StatusInProgress WorkItemStatus = "in_progress"
	StatusBlocked    WorkItemStatus = "blocked"
	StatusInReview   WorkItemStatus = "in_review"
	StatusDone       WorkItemStatus = "done"
	StatusArchived   WorkItemStatus = "archived"
)

// Reference is an outbound link recorded on a work item. The URL may be an
// external resource or another item id embedded in a URI.
type Reference struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// WorkItem is a read-only snapshot of a backlog entity, owned by storage.
// The engine never mutates one after it crosses the collaborator boundary.
type WorkItem struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Status WorkItemStatus `json:"status"`
	Type   WorkItemType   `json:"type"`

	// ParentID is the canonical parent reference. LegacyParentTask is the
	// pre-migration alias still present on older items; resolution falls
	// back to it when ParentID is empty.
	ParentID         string `json:"parent_id,omitempty"`
	LegacyParentTask string `json:"parent_task_id,omitempty"`

	Description   string      `json:"description,omitempty"`
	Evidence      []string    `json:"evidence,omitempty"`
	BlockedReason []string    `json:"blocked_reason,omitempty"`
	References    []Reference `json:"references,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Parent returns the effective parent id, preferring the canonical field
// over the legacy alias.
func (w *WorkItem) Parent() string {
	if w.ParentID != "" {
		return w.ParentID
	}
	return w.LegacyParentTask
}

// SearchText returns the concatenated searchable text of the item, used by
// lexical indexing and the coordination bonus.
func (w *WorkItem) SearchText() string {
	text := w.Title
	if w.Description != "" {
		text += "\n" + w.Description
	}
	for _, e := range w.Evidence {
		text += "\n" + e
	}
	for _, r := range w.BlockedReason {
		text += "\n" + r
	}
	for _, ref := range w.References {
		text += "\n" + ref.URL
		if ref.Title != "" {
			text += " " + ref.Title
		}
	}
	return text
}

// idPattern matches a typed work-item id: a known prefix plus at least four
// digits, e.g. TASK-0042 or EPIC-00137.
var idPattern = regexp.MustCompile(`^(TASK|EPIC|FOLDER|ART|MS)-\d{4,}$`)

// refPattern finds id-shaped candidates embedded in arbitrary text (URLs,
// reference titles). Same shape as idPattern without anchors.
var refPattern = regexp.MustCompile(`(TASK|EPIC|FOLDER|ART|MS)-\d{4,}`)

// ValidID reports whether s is a well-formed work-item id.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// ExtractIDs returns all id-shaped candidates found in s, in order of
// appearance. Duplicates are preserved; callers dedupe as needed.
func ExtractIDs(s string) []string {
	return refPattern.FindAllString(s, -1)
}

// TypeForID maps an id's prefix to its work-item type. Unknown prefixes
// return the empty type.
func TypeForID(id string) WorkItemType {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	switch m[1] {
	case "TASK":
		return TypeTask
	case "EPIC":
		return TypeEpic
	case "FOLDER":
		return TypeFolder
	case "ART":
		return TypeArtifact
	case "MS":
		return TypeMilestone
	}
	return ""
}
