package types

// Document is a read-only snapshot of a backlog document (design note,
// decision record, artifact description). IDs are URI-like, e.g.
// "doc://guides/retrieval.md".
type Document struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SearchText returns the concatenated searchable text of the document.
func (d *Document) SearchText() string {
	text := d.Title
	if d.Path != "" {
		text += "\n" + d.Path
	}
	if d.Content != "" {
		text += "\n" + d.Content
	}
	return text
}
