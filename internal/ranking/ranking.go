// Package ranking implements the scoring and fusion layer of the retrieval
// engine: min-max normalization, weighted-sum fusion of lexical and vector
// result sequences, and the coordination bonus for multi-term queries.
//
// Every function here is pure and deterministic. The retrieval index owns
// candidate generation; this package only combines scores.
package ranking

import (
	"sort"
	"strings"
)

// Hit is one scored candidate in a ranked sequence.
type Hit struct {
	ID    string
	Score float64
}

// Weights controls the fusion blend. Defaults come from configuration, not
// from this package; DefaultWeights mirrors the tuned values validated by
// the golden-ranking tests.
type Weights struct {
	Text   float64
	Vector float64
}

// DefaultWeights is the tuned fusion blend.
var DefaultWeights = Weights{Text: 0.7, Vector: 0.3}

// DefaultCoordinationBonus is the maximum score added for full query-term
// coverage.
const DefaultCoordinationBonus = 0.5

// Normalize min-max scales the scores of hits into [0,1], preserving order
// and ids. An empty sequence stays empty; when all scores are equal
// (including a single hit) every score becomes 1.0.
func Normalize(hits []Hit) []Hit {
	if len(hits) == 0 {
		return nil
	}

	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	out := make([]Hit, len(hits))
	spread := maxScore - minScore
	for i, h := range hits {
		score := 1.0
		if spread > 0 {
			score = (h.Score - minScore) / spread
		}
		out[i] = Hit{ID: h.ID, Score: score}
	}
	return out
}

// Fuse merges two normalized result sequences by id over the union of both
// sets, weighting each side and sorting descending. A side that did not
// return an id contributes zero for it, so an empty vector sequence
// degenerates to pure lexical ranking scaled by the text weight.
//
// Ties break by id ascending so the ordering is deterministic.
func Fuse(lexical, vector []Hit, w Weights) []Hit {
	combined := make(map[string]float64, len(lexical)+len(vector))
	for _, h := range lexical {
		combined[h.ID] += h.Score * w.Text
	}
	for _, h := range vector {
		combined[h.ID] += h.Score * w.Vector
	}

	out := make([]Hit, 0, len(combined))
	for id, score := range combined {
		out = append(out, Hit{ID: id, Score: score})
	}
	sortHits(out)
	return out
}

// CoordinationBonus rewards hits whose searchable text covers more distinct
// terms of a multi-term query. Each hit gains
//
//	(matched distinct terms / total distinct terms) * bonus
//
// using case-insensitive substring matching, then the sequence is re-sorted.
// Single-term queries are a strict no-op: fusion alone already ranks them.
//
// textLookup maps a hit id to its searchable text; ids with no text simply
// gain nothing.
func CoordinationBonus(fused []Hit, query string, textLookup func(id string) string, bonus float64) []Hit {
	terms := distinctTerms(query)
	if len(terms) <= 1 {
		return fused
	}

	out := make([]Hit, len(fused))
	copy(out, fused)
	for i, h := range out {
		text := strings.ToLower(textLookup(h.ID))
		if text == "" {
			continue
		}
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched > 0 {
			out[i].Score += float64(matched) / float64(len(terms)) * bonus
		}
	}
	sortHits(out)
	return out
}

// distinctTerms lowercases and splits the query on whitespace, dropping
// duplicate terms while preserving first-seen order.
func distinctTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// sortHits orders hits by score descending, breaking ties by id ascending.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
