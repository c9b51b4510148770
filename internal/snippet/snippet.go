// Package snippet extracts deterministic excerpts from work items and
// documents for search results. Generation is pure: identical inputs
// always produce byte-identical output.
package snippet

import (
	"strings"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// maxLen bounds the excerpt length, excluding the appended ellipsis.
const maxLen = 120

// ellipsis marks a trimmed excerpt.
const ellipsis = "..."

// Result carries the generated excerpt and every field the query matched.
type Result struct {
	Snippet string
	// MatchedFields lists field names the query matched anywhere, in scan
	// order. Empty when the query matched nothing.
	MatchedFields []string
}

// field is one scannable (name, text) pair in fixed priority order.
type field struct {
	name string
	text string
}

// ForEntity generates a snippet for a work item. Fields are scanned in
// fixed priority: title, description, evidence, blocked_reason, references.
func ForEntity(item *types.WorkItem, query string) Result {
	fields := []field{
		{"title", item.Title},
		{"description", item.Description},
		{"evidence", strings.Join(item.Evidence, "\n")},
		{"blocked_reason", strings.Join(item.BlockedReason, "\n")},
		{"references", joinReferences(item.References)},
	}
	return generate(fields, item.Title, query)
}

// ForDocument generates a snippet for a document. Scan order: title,
// content, path.
func ForDocument(doc *types.Document, query string) Result {
	fields := []field{
		{"title", doc.Title},
		{"content", doc.Content},
		{"references", doc.Path},
	}
	return generate(fields, doc.Title, query)
}

// generate scans fields in order, excerpting around the first match and
// collecting every field that matched anywhere. With no match the title is
// the fallback excerpt and the matched-fields list stays empty.
func generate(fields []field, title, query string) Result {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return Result{Snippet: trim(title, 0)}
	}

	var matched []string
	excerpt := ""
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		idx := strings.Index(strings.ToLower(f.text), needle)
		if idx < 0 {
			continue
		}
		matched = append(matched, f.name)
		if excerpt == "" {
			excerpt = trim(f.text, idx)
		}
	}

	if excerpt == "" {
		return Result{Snippet: trim(title, 0)}
	}
	return Result{Snippet: excerpt, MatchedFields: matched}
}

// trim returns at most maxLen characters of text around matchIdx, appending
// an ellipsis when the tail was cut and prepending one when the head was.
func trim(text string, matchIdx int) string {
	if len(text) <= maxLen {
		return text
	}

	// Start a little before the match so the hit stays visible, but never
	// past the point where a full window no longer fits.
	start := matchIdx - 20
	if start < 0 {
		start = 0
	}
	if start > len(text)-maxLen {
		start = len(text) - maxLen
	}
	end := start + maxLen

	out := text[start:end]
	if start > 0 {
		out = ellipsis + out
	}
	if end < len(text) {
		out += ellipsis
	}
	return out
}

// joinReferences flattens reference URLs and titles into one scannable blob.
func joinReferences(refs []types.Reference) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range refs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.URL)
		if r.Title != "" {
			b.WriteString(" ")
			b.WriteString(r.Title)
		}
	}
	return b.String()
}
