package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

func testItem() *types.WorkItem {
	return &types.WorkItem{
		ID:          "TASK-0042",
		Title:       "Wire hydration pipeline",
		Description: "Connect the relational expansion stage to the orchestrator and thread the visited set through.",
		Evidence:    []string{"reviewed fusion weights against fixture corpus"},
		BlockedReason: []string{
			"waiting on operation log contract",
		},
		References: []types.Reference{
			{URL: "https://tracker.local/EPIC-0005", Title: "retrieval epic"},
		},
	}
}

func TestForEntityTitleMatchWinsPriority(t *testing.T) {
	// "pipeline" appears in title and description; title wins the excerpt.
	got := ForEntity(testItem(), "pipeline")
	assert.Equal(t, "Wire hydration pipeline", got.Snippet)
	assert.Equal(t, []string{"title"}, got.MatchedFields)
}

func TestForEntityScansLowerPriorityFields(t *testing.T) {
	got := ForEntity(testItem(), "visited set")
	assert.Contains(t, got.Snippet, "visited set")
	assert.Equal(t, []string{"description"}, got.MatchedFields)

	got = ForEntity(testItem(), "fusion weights")
	assert.Equal(t, []string{"evidence"}, got.MatchedFields)

	got = ForEntity(testItem(), "operation log")
	assert.Equal(t, []string{"blocked_reason"}, got.MatchedFields)

	got = ForEntity(testItem(), "retrieval epic")
	assert.Equal(t, []string{"references"}, got.MatchedFields)
}

func TestForEntityCollectsAllMatchedFields(t *testing.T) {
	item := testItem()
	item.Description = "hydration budget work"
	got := ForEntity(item, "hydration")
	assert.Equal(t, []string{"title", "description"}, got.MatchedFields)
	// Excerpt still comes from the highest-priority match.
	assert.Equal(t, "Wire hydration pipeline", got.Snippet)
}

func TestForEntityNoMatchFallsBackToTitle(t *testing.T) {
	got := ForEntity(testItem(), "zzzznothing")
	assert.Equal(t, "Wire hydration pipeline", got.Snippet)
	assert.Empty(t, got.MatchedFields)
}

func TestForEntityCaseInsensitive(t *testing.T) {
	got := ForEntity(testItem(), "HYDRATION")
	assert.Equal(t, []string{"title"}, got.MatchedFields)
}

func TestTrimLongField(t *testing.T) {
	item := testItem()
	item.Description = strings.Repeat("padding words before the match ", 20) +
		"needle-here" + strings.Repeat(" and plenty of trailing text", 20)

	got := ForEntity(item, "needle-here")
	require.NotEmpty(t, got.Snippet)
	assert.Contains(t, got.Snippet, "needle-here")
	// 120 chars plus at most two ellipses.
	assert.LessOrEqual(t, len(got.Snippet), 120+2*len("..."))
	assert.True(t, strings.HasPrefix(got.Snippet, "...") || strings.HasSuffix(got.Snippet, "..."))
}

func TestForDocument(t *testing.T) {
	doc := &types.Document{
		ID:      "doc://guides/retrieval.md",
		Path:    "guides/retrieval.md",
		Title:   "Retrieval guide",
		Content: "Hybrid search combines lexical and vector rankings with weighted fusion.",
	}

	got := ForDocument(doc, "weighted fusion")
	assert.Contains(t, got.Snippet, "weighted fusion")
	assert.Equal(t, []string{"content"}, got.MatchedFields)
}

func TestGenerationIdempotent(t *testing.T) {
	item := testItem()
	first := ForEntity(item, "hydration pipeline")
	for i := 0; i < 5; i++ {
		again := ForEntity(item, "hydration pipeline")
		assert.Equal(t, first, again)
	}
}

func TestEmptyQueryReturnsTitle(t *testing.T) {
	got := ForEntity(testItem(), "   ")
	assert.Equal(t, "Wire hydration pipeline", got.Snippet)
	assert.Empty(t, got.MatchedFields)
}
