package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/backlogctx-mcp/internal/hydrate"
	"github.com/dshills/backlogctx-mcp/internal/index"
	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// handleHydrateContext handles the hydrate_context tool invocation
func (s *Server) handleHydrateContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	req := hydrate.Request{
		ID:              getStringDefault(args, "id", ""),
		Query:           getStringDefault(args, "query", ""),
		Depth:           getIntDefault(args, "depth", 0),
		MaxTokens:       getIntDefault(args, "max_tokens", 0),
		IncludeRelated:  getBoolDefault(args, "include_related", false),
		IncludeActivity: getBoolDefault(args, "include_activity", false),
	}
	if req.ID == "" && req.Query == "" {
		return mcp.NewToolResultError("either id or query is required"), nil
	}
	if req.ID != "" && !types.ValidID(req.ID) {
		return mcp.NewToolResultError(fmt.Sprintf("malformed id %q", req.ID)), nil
	}

	result, err := s.hydrator.Hydrate(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("hydration failed: %s", err)), nil
	}
	if result == nil {
		// Nothing found is a plain result, never a protocol error.
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"found": false,
		})), nil
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %s", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := getIntDefault(args, "limit", 0)
	if limit < 0 || limit > 100 {
		return mcp.NewToolResultError("limit must be between 1 and 100"), nil
	}

	sortMode := getStringDefault(args, "sort", index.SortRelevant)
	if sortMode != index.SortRelevant && sortMode != index.SortRecent {
		return mcp.NewToolResultError(fmt.Sprintf("invalid sort %q", sortMode)), nil
	}

	opts := types.SearchOptions{
		Types:    getStringSlice(args, "types"),
		Status:   types.WorkItemStatus(getStringDefault(args, "status", "")),
		ParentID: getStringDefault(args, "parent", ""),
		Limit:    limit,
		Sort:     sortMode,
	}

	hits, err := s.index.Search(ctx, query, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %s", err)), nil
	}

	results := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		entry := map[string]interface{}{
			"kind":  string(hit.Kind),
			"id":    hit.ID(),
			"score": hit.Score,
		}
		if hit.Snippet != "" {
			entry["snippet"] = hit.Snippet
		}
		if len(hit.MatchedFields) > 0 {
			entry["matched_fields"] = hit.MatchedFields
		}
		switch hit.Kind {
		case types.HitEntity:
			entry["title"] = hit.Entity.Title
			entry["type"] = string(hit.Entity.Type)
			entry["status"] = string(hit.Entity.Status)
		case types.HitDocument:
			entry["title"] = hit.Document.Title
			entry["path"] = hit.Document.Path
		}
		results = append(results, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})), nil
}

// handleUpsertEntity handles the upsert_entity tool invocation
func (s *Server) handleUpsertEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	id := getStringDefault(args, "id", "")
	if !types.ValidID(id) {
		return mcp.NewToolResultError(fmt.Sprintf("malformed id %q", id)), nil
	}
	title := getStringDefault(args, "title", "")
	if title == "" {
		return mcp.NewToolResultError("title parameter is required"), nil
	}

	now := time.Now().UTC()
	item := &types.WorkItem{
		ID:            id,
		Title:         title,
		Status:        types.WorkItemStatus(getStringDefault(args, "status", string(types.StatusBacklog))),
		Type:          types.TypeForID(id),
		ParentID:      getStringDefault(args, "parent_id", ""),
		Description:   getStringDefault(args, "description", ""),
		Evidence:      getStringSlice(args, "evidence"),
		BlockedReason: getStringSlice(args, "blocked_reason"),
		References:    getReferences(args),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Update-on-absent behaves as insert; an existing item keeps its
	// creation time.
	if prev, err := s.store.LookupEntity(ctx, id); err == nil {
		item.CreatedAt = prev.CreatedAt
	}

	actor := getStringDefault(args, "actor", "")
	s.store.PutEntity(item, actor, "upsert_entity", changedFields(args))
	if err := s.index.UpsertEntity(ctx, item); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index update failed: %s", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"indexed": true,
	})), nil
}

// handleRemoveEntity handles the remove_entity tool invocation
func (s *Server) handleRemoveEntity(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	id := getStringDefault(args, "id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	existed := s.store.DeleteEntity(id, getStringDefault(args, "actor", ""))
	s.index.RemoveEntity(id)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"removed": existed,
	})), nil
}

// handleUpsertDocument handles the upsert_document tool invocation
func (s *Server) handleUpsertDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	id := getStringDefault(args, "id", "")
	path := getStringDefault(args, "path", "")
	title := getStringDefault(args, "title", "")
	if id == "" || path == "" || title == "" {
		return mcp.NewToolResultError("id, path and title parameters are required"), nil
	}

	doc := &types.Document{
		ID:      id,
		Path:    path,
		Title:   title,
		Content: getStringDefault(args, "content", ""),
	}

	s.store.PutDocument(doc, getStringDefault(args, "actor", ""))
	if err := s.index.UpsertDocument(ctx, doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index update failed: %s", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"indexed": true,
	})), nil
}

// handleRemoveDocument handles the remove_document tool invocation
func (s *Server) handleRemoveDocument(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	id := getStringDefault(args, "id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	existed := s.store.DeleteDocument(id, getStringDefault(args, "actor", ""))
	s.index.RemoveDocument(id)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"removed": existed,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storeEntities, storeDocuments := s.store.Counts()
	idxEntities, idxDocuments, entityVectors, documentVectors := s.index.Counts()

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
		"store": map[string]interface{}{
			"entities":  storeEntities,
			"documents": storeDocuments,
		},
		"index": map[string]interface{}{
			"entities":         idxEntities,
			"documents":        idxDocuments,
			"entity_vectors":   entityVectors,
			"document_vectors": documentVectors,
			"build_mode":       index.BuildMode,
		},
		"embeddings": map[string]interface{}{
			"available": s.index.EmbeddingsAvailable(),
			"provider":  s.cfg.Embedding.Provider,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string-array parameter, tolerating the
// []interface{} shape JSON decoding produces.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getReferences extracts the references parameter.
func getReferences(args map[string]interface{}) []types.Reference {
	raw, ok := args["references"].([]interface{})
	if !ok {
		return nil
	}
	var refs []types.Reference
	for _, v := range raw {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		url, _ := m["url"].(string)
		if url == "" {
			continue
		}
		title, _ := m["title"].(string)
		refs = append(refs, types.Reference{URL: url, Title: title})
	}
	return refs
}

// changedFields lists which mutable entity fields the upsert carried, for
// the operation log.
func changedFields(args map[string]interface{}) []string {
	var fields []string
	for _, key := range []string{"title", "status", "parent_id", "description", "evidence", "blocked_reason", "references"} {
		if _, ok := args[key]; ok {
			fields = append(fields, key)
		}
	}
	return fields
}
