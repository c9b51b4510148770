package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []Hit
		expected []Hit
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "single hit becomes 1.0",
			input:    []Hit{{ID: "TASK-0001", Score: 42.5}},
			expected: []Hit{{ID: "TASK-0001", Score: 1.0}},
		},
		{
			name: "all equal scores become 1.0",
			input: []Hit{
				{ID: "TASK-0001", Score: 3.3},
				{ID: "TASK-0002", Score: 3.3},
				{ID: "TASK-0003", Score: 3.3},
			},
			expected: []Hit{
				{ID: "TASK-0001", Score: 1.0},
				{ID: "TASK-0002", Score: 1.0},
				{ID: "TASK-0003", Score: 1.0},
			},
		},
		{
			name: "min-max scaling",
			input: []Hit{
				{ID: "TASK-0001", Score: 10},
				{ID: "TASK-0002", Score: 5},
				{ID: "TASK-0003", Score: 0},
			},
			expected: []Hit{
				{ID: "TASK-0001", Score: 1.0},
				{ID: "TASK-0002", Score: 0.5},
				{ID: "TASK-0003", Score: 0.0},
			},
		},
		{
			name: "negative scores still land in range",
			input: []Hit{
				{ID: "TASK-0001", Score: -2},
				{ID: "TASK-0002", Score: -6},
			},
			expected: []Hit{
				{ID: "TASK-0001", Score: 1.0},
				{ID: "TASK-0002", Score: 0.0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeRange(t *testing.T) {
	input := []Hit{
		{ID: "a", Score: 17.2},
		{ID: "b", Score: -3},
		{ID: "c", Score: 0.004},
		{ID: "d", Score: 9999},
	}
	for _, h := range Normalize(input) {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestNormalizePreservesOrderAndIDs(t *testing.T) {
	input := []Hit{
		{ID: "x", Score: 1},
		{ID: "y", Score: 9},
		{ID: "z", Score: 4},
	}
	got := Normalize(input)
	require.Len(t, got, 3)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "y", got[1].ID)
	assert.Equal(t, "z", got[2].ID)
}

func TestFuseEmptyVectorPreservesLexicalOrder(t *testing.T) {
	lexical := []Hit{
		{ID: "TASK-0001", Score: 1.0},
		{ID: "TASK-0002", Score: 0.6},
		{ID: "TASK-0003", Score: 0.1},
	}

	got := Fuse(lexical, nil, DefaultWeights)

	require.Len(t, got, 3)
	assert.Equal(t, "TASK-0001", got[0].ID)
	assert.Equal(t, "TASK-0002", got[1].ID)
	assert.Equal(t, "TASK-0003", got[2].ID)

	// Scores are the lexical scores scaled by the text weight only.
	assert.InDelta(t, 0.7, got[0].Score, 1e-9)
	assert.InDelta(t, 0.42, got[1].Score, 1e-9)
	assert.InDelta(t, 0.07, got[2].Score, 1e-9)
}

func TestFuseMergesUnion(t *testing.T) {
	lexical := []Hit{
		{ID: "TASK-0001", Score: 1.0},
		{ID: "TASK-0002", Score: 0.5},
	}
	vector := []Hit{
		{ID: "TASK-0002", Score: 1.0},
		{ID: "TASK-0003", Score: 0.8},
	}

	got := Fuse(lexical, vector, DefaultWeights)
	require.Len(t, got, 3)

	scores := make(map[string]float64)
	for _, h := range got {
		scores[h.ID] = h.Score
	}
	assert.InDelta(t, 0.7, scores["TASK-0001"], 1e-9)          // lexical only
	assert.InDelta(t, 0.5*0.7+0.3, scores["TASK-0002"], 1e-9)  // both sides
	assert.InDelta(t, 0.8*0.3, scores["TASK-0003"], 1e-9)      // vector only
	assert.Equal(t, "TASK-0001", got[0].ID)                    // 0.70 ranks first
}

func TestFuseSortsDescending(t *testing.T) {
	lexical := []Hit{
		{ID: "a", Score: 0.1},
		{ID: "b", Score: 0.9},
	}
	got := Fuse(lexical, nil, DefaultWeights)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestCoordinationBonusSingleTermNoOp(t *testing.T) {
	fused := []Hit{
		{ID: "TASK-0001", Score: 0.8},
		{ID: "TASK-0002", Score: 0.4},
	}
	lookup := func(id string) string { return "anything with backlog inside" }

	got := CoordinationBonus(fused, "backlog", lookup, DefaultCoordinationBonus)
	assert.Equal(t, fused, got)

	got = CoordinationBonus(fused, "  backlog  ", lookup, DefaultCoordinationBonus)
	assert.Equal(t, fused, got)
}

func TestCoordinationBonusRewardsFullCoverage(t *testing.T) {
	fused := []Hit{
		{ID: "TASK-0001", Score: 0.70}, // strong on one term only
		{ID: "TASK-0002", Score: 0.55}, // contains both terms
	}
	text := map[string]string{
		"TASK-0001": "Backlog grooming checklist",
		"TASK-0002": "Backlog MCP server integration",
	}
	lookup := func(id string) string { return text[id] }

	got := CoordinationBonus(fused, "backlog mcp", lookup, DefaultCoordinationBonus)
	require.Len(t, got, 2)

	// TASK-0002 matches 2/2 terms (+0.5), TASK-0001 matches 1/2 (+0.25).
	assert.Equal(t, "TASK-0002", got[0].ID)
	assert.InDelta(t, 1.05, got[0].Score, 1e-9)
	assert.InDelta(t, 0.95, got[1].Score, 1e-9)
}

func TestCoordinationBonusCaseInsensitive(t *testing.T) {
	fused := []Hit{{ID: "TASK-0001", Score: 0.5}}
	lookup := func(id string) string { return "HYBRID search FUSION" }

	got := CoordinationBonus(fused, "hybrid fusion", lookup, DefaultCoordinationBonus)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestCoordinationBonusDistinctTerms(t *testing.T) {
	// Repeated query terms count once.
	fused := []Hit{{ID: "TASK-0001", Score: 0.0}}
	lookup := func(id string) string { return "fusion only" }

	got := CoordinationBonus(fused, "fusion fusion ranking", lookup, DefaultCoordinationBonus)
	require.Len(t, got, 1)
	// 1 of 2 distinct terms matched.
	assert.InDelta(t, 0.25, got[0].Score, 1e-9)
}

func TestCoordinationBonusDoesNotMutateInput(t *testing.T) {
	fused := []Hit{
		{ID: "a", Score: 0.1},
		{ID: "b", Score: 0.2},
	}
	lookup := func(id string) string { return "alpha beta" }

	_ = CoordinationBonus(fused, "alpha beta", lookup, DefaultCoordinationBonus)
	assert.Equal(t, 0.1, fused[0].Score)
	assert.Equal(t, 0.2, fused[1].Score)
}
