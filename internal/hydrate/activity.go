package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// overlay reads the operation log for each id, merges, dedupes by
// (timestamp, entity), sorts newest-first and caps at cfg.ActivityCap. A
// log read failure degrades the overlay to whatever merged cleanly.
func (h *Hydrator) overlay(ctx context.Context, ids []string) []types.ActivityEntry {
	type key struct {
		ts time.Time
		id string
	}
	seen := make(map[key]struct{})
	var merged []types.OperationLogEntry

	for _, id := range ids {
		entries, err := h.oplog.ReadOperations(ctx, types.ReadOptions{EntityID: id, Limit: h.cfg.ActivityCap})
		if err != nil {
			h.logger.Warn("operation log read degraded",
				slog.String("entity_id", id),
				slog.String("error", err.Error()))
			continue
		}
		for _, e := range entries {
			k := key{ts: e.Timestamp, id: e.EntityID}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, e)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		}
		return merged[i].EntityID < merged[j].EntityID
	})
	if len(merged) > h.cfg.ActivityCap {
		merged = merged[:h.cfg.ActivityCap]
	}

	out := make([]types.ActivityEntry, 0, len(merged))
	for _, e := range merged {
		out = append(out, types.ActivityEntry{
			Timestamp: e.Timestamp,
			Tool:      e.Tool,
			EntityID:  e.EntityID,
			Actor:     e.Actor,
			Summary:   renderOperation(e),
		})
	}
	return out
}

// renderOperation builds a one-line human summary from the tool name and
// the recorded changed fields.
func renderOperation(e types.OperationLogEntry) string {
	actor := e.Actor
	if actor == "" {
		actor = "unknown"
	}
	if len(e.ChangedFields) == 0 {
		return fmt.Sprintf("%s ran %s on %s", actor, e.Tool, e.EntityID)
	}
	return fmt.Sprintf("%s ran %s on %s (changed %s)", actor, e.Tool, e.EntityID, strings.Join(e.ChangedFields, ", "))
}

// sessionMemory derives the most recent same-actor session over the focal's
// operations. Walking from the newest entry backward, the session extends
// while the actor stays the same and consecutive entries are within
// cfg.SessionGap of each other; the first violation ends it. No entries
// means no session.
func (h *Hydrator) sessionMemory(ctx context.Context, focalID string) *types.SessionSummary {
	entries, err := h.oplog.ReadOperations(ctx, types.ReadOptions{EntityID: focalID})
	if err != nil {
		h.logger.Warn("session memory degraded",
			slog.String("entity_id", focalID),
			slog.String("error", err.Error()))
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	// Entries arrive reverse-chronological; index 0 is the newest.
	newest := entries[0]
	window := []types.OperationLogEntry{newest}
	prev := newest
	for _, e := range entries[1:] {
		if e.Actor != newest.Actor {
			break
		}
		if prev.Timestamp.Sub(e.Timestamp) > h.cfg.SessionGap {
			break
		}
		window = append(window, e)
		prev = e
	}

	return &types.SessionSummary{
		Actor:          newest.Actor,
		ActorType:      newest.ActorType,
		StartedAt:      window[len(window)-1].Timestamp,
		EndedAt:        newest.Timestamp,
		OperationCount: len(window),
		Summary:        renderSession(window),
	}
}

// renderSession summarizes a session window by counting status transitions,
// evidence additions and document writes.
func renderSession(window []types.OperationLogEntry) string {
	var statusChanges, evidenceAdds, docWrites int
	for _, e := range window {
		for _, f := range e.ChangedFields {
			switch f {
			case "status":
				statusChanges++
			case "evidence":
				evidenceAdds++
			}
		}
		if strings.Contains(e.Tool, "document") {
			docWrites++
		}
	}

	parts := []string{fmt.Sprintf("%d operations", len(window))}
	if statusChanges > 0 {
		parts = append(parts, fmt.Sprintf("%d status changes", statusChanges))
	}
	if evidenceAdds > 0 {
		parts = append(parts, fmt.Sprintf("%d evidence additions", evidenceAdds))
	}
	if docWrites > 0 {
		parts = append(parts, fmt.Sprintf("%d document writes", docWrites))
	}
	return strings.Join(parts, ", ")
}
