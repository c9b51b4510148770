package index

import (
	"sort"

	"github.com/dshills/backlogctx-mcp/internal/ranking"
)

// vectorIndex holds unit-normalized embeddings and serves brute-force
// cosine search. With normalized vectors cosine similarity reduces to a
// dot product, so scores land in [-1,1] and in practice [0,1] for text
// embeddings.
type vectorIndex struct {
	// Vectors maps doc id -> unit-normalized embedding.
	Vectors map[string][]float32 `json:"vectors"`
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{Vectors: make(map[string][]float32)}
}

// add stores a vector, replacing any previous entry for the id.
func (v *vectorIndex) add(id string, vector []float32) {
	v.Vectors[id] = vector
}

// remove drops a vector. Unknown ids are a no-op.
func (v *vectorIndex) remove(id string) {
	delete(v.Vectors, id)
}

// size returns the number of stored vectors.
func (v *vectorIndex) size() int {
	return len(v.Vectors)
}

// search returns the ids most similar to query, restricted to ids accepted
// by allowed (nil allows all), ordered by similarity descending with ties
// broken by id, truncated to limit. Dimension mismatches score zero.
func (v *vectorIndex) search(query []float32, limit int, allowed func(id string) bool) []ranking.Hit {
	if len(query) == 0 {
		return nil
	}

	hits := make([]ranking.Hit, 0, len(v.Vectors))
	for id, vec := range v.Vectors {
		if allowed != nil && !allowed(id) {
			continue
		}
		score := dot(query, vec)
		if score <= 0 {
			continue
		}
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

// dot computes the dot product over the shared prefix of two vectors.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
