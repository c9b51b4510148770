package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// hydrateContextTool returns the tool definition for hydrate_context
func hydrateContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "hydrate_context",
		Description: "Assemble a token-bounded context bundle for one backlog item: relatives, cross-references, related documents, recent activity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Work item id (e.g. TASK-0042). Either id or query is required",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text query used to resolve the focal item when no id is given",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Relational expansion depth (1-3)",
					"default":     1,
					"minimum":     1,
					"maximum":     3,
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget for the response",
					"default":     4000,
				},
				"include_related": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, add semantically related items and documents",
					"default":     false,
				},
				"include_activity": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, add recent operations and the latest session summary",
					"default":     false,
				},
			},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Search backlog items and documents with hybrid lexical+semantic ranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"types": map[string]interface{}{
					"type":        "array",
					"description": "Restrict hits to these types; 'document' selects documents",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"task", "epic", "folder", "artifact", "milestone", "document"},
					},
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Filter entities by status",
					"enum":        []string{"backlog", "ready", "in_progress", "blocked", "in_review", "done", "archived"},
				},
				"parent": map[string]interface{}{
					"type":        "string",
					"description": "Filter entities by direct parent id",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"sort": map[string]interface{}{
					"type":        "string",
					"description": "relevant (fused ranking) or recent (updated_at descending)",
					"enum":        []string{"relevant", "recent"},
					"default":     "relevant",
				},
			},
			Required: []string{"query"},
		},
	}
}

// upsertEntityTool returns the tool definition for upsert_entity
func upsertEntityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "upsert_entity",
		Description: "Insert or update a backlog work item and reindex it (update on an absent id behaves as insert)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Work item id: TYPE-NNNN with type prefix TASK, EPIC, FOLDER, ART or MS",
				},
				"title": map[string]interface{}{
					"type": "string",
				},
				"status": map[string]interface{}{
					"type": "string",
					"enum": []string{"backlog", "ready", "in_progress", "blocked", "in_review", "done", "archived"},
				},
				"parent_id": map[string]interface{}{
					"type":        "string",
					"description": "Parent work item id",
				},
				"description": map[string]interface{}{
					"type": "string",
				},
				"evidence": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"blocked_reason": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"references": map[string]interface{}{
					"type":        "array",
					"description": "Outbound links; ids embedded in URLs or titles become cross-references",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"url":   map[string]interface{}{"type": "string"},
							"title": map[string]interface{}{"type": "string"},
						},
						"required": []string{"url"},
					},
				},
				"actor": map[string]interface{}{
					"type":        "string",
					"description": "Actor recorded in the operation log",
				},
			},
			Required: []string{"id", "title"},
		},
	}
}

// removeEntityTool returns the tool definition for remove_entity
func removeEntityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_entity",
		Description: "Remove a backlog work item from store and index (no-op on an absent id)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Work item id",
				},
				"actor": map[string]interface{}{
					"type":        "string",
					"description": "Actor recorded in the operation log",
				},
			},
			Required: []string{"id"},
		},
	}
}

// upsertDocumentTool returns the tool definition for upsert_document
func upsertDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "upsert_document",
		Description: "Insert or update a backlog document and reindex it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Document id, e.g. doc://guides/retrieval.md",
				},
				"path": map[string]interface{}{
					"type": "string",
				},
				"title": map[string]interface{}{
					"type": "string",
				},
				"content": map[string]interface{}{
					"type": "string",
				},
				"actor": map[string]interface{}{
					"type": "string",
				},
			},
			Required: []string{"id", "path", "title"},
		},
	}
}

// removeDocumentTool returns the tool definition for remove_document
func removeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_document",
		Description: "Remove a backlog document from store and index (no-op on an absent id)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type": "string",
				},
				"actor": map[string]interface{}{
					"type": "string",
				},
			},
			Required: []string{"id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report corpus counts, index health and embedding availability",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
