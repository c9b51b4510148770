package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dshills/backlogctx-mcp/internal/ranking"
)

// Field boosts applied at index time. Title terms dominate, body terms
// count fully, peripheral fields contribute at half weight.
const (
	boostTitle      = 3.0
	boostBody       = 1.0
	boostPeripheral = 0.5
)

// lexicalDoc is the weighted term bag for one indexed object.
type lexicalDoc struct {
	Terms map[string]float64 `json:"terms"`
}

// lexicalIndex is a serializable in-memory inverted index with tf-idf
// scoring. It is cheap to rebuild from the corpus and snapshot-friendly;
// the engine does not depend on its exact scoring math, only on a ranked
// (id, score) sequence.
type lexicalIndex struct {
	// Postings maps term -> doc id -> accumulated field-boosted term weight.
	Postings map[string]map[string]float64 `json:"postings"`
	// Docs maps doc id -> its term bag, kept for removal.
	Docs map[string]*lexicalDoc `json:"docs"`
}

func newLexicalIndex() *lexicalIndex {
	return &lexicalIndex{
		Postings: make(map[string]map[string]float64),
		Docs:     make(map[string]*lexicalDoc),
	}
}

// weightedField pairs a text field with its boost for indexing.
type weightedField struct {
	text  string
	boost float64
}

// add indexes a document from its weighted fields, replacing any previous
// entry for the id.
func (l *lexicalIndex) add(id string, fields []weightedField) {
	l.remove(id)

	doc := &lexicalDoc{Terms: make(map[string]float64)}
	for _, f := range fields {
		for _, term := range tokenize(f.text) {
			doc.Terms[term] += f.boost
		}
	}
	if len(doc.Terms) == 0 {
		return
	}

	l.Docs[id] = doc
	for term, weight := range doc.Terms {
		posting, ok := l.Postings[term]
		if !ok {
			posting = make(map[string]float64)
			l.Postings[term] = posting
		}
		posting[id] = weight
	}
}

// remove drops a document from the index. Unknown ids are a no-op.
func (l *lexicalIndex) remove(id string) {
	doc, ok := l.Docs[id]
	if !ok {
		return
	}
	for term := range doc.Terms {
		posting := l.Postings[term]
		delete(posting, id)
		if len(posting) == 0 {
			delete(l.Postings, term)
		}
	}
	delete(l.Docs, id)
}

// size returns the number of indexed documents.
func (l *lexicalIndex) size() int {
	return len(l.Docs)
}

// search scores every document matching at least one query term, restricted
// to ids accepted by allowed (nil allows all). Results come back ordered by
// raw score descending, ties broken by id, truncated to limit.
func (l *lexicalIndex) search(query string, limit int, allowed func(id string) bool) []ranking.Hit {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	n := float64(len(l.Docs))
	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := l.Postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + n/float64(1+len(posting)))
		for id, weight := range posting {
			if allowed != nil && !allowed(id) {
				continue
			}
			scores[id] += weight * idf
		}
	}

	hits := make([]ranking.Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, ranking.Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// tokenize lowercases text and splits it on any non-alphanumeric rune.
// Single-character tokens are kept: ids like "MS-0001" tokenize to useful
// parts either way.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
