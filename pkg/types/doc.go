// Package types provides shared type definitions for the backlogctx MCP server.
//
// This package defines the domain model used across the context engine:
// work items, documents, fidelity-graded projections, activity entries, and
// the hydration result envelope. It also declares the collaborator contracts
// the engine consumes (entity storage, document listing, operation log).
//
// # Core Types
//
// WorkItem is a read-only snapshot of a backlog item as supplied by storage:
//
//	item := &types.WorkItem{
//	    ID:     "TASK-0042",
//	    Title:  "Wire hydration pipeline",
//	    Status: types.StatusInProgress,
//	    Type:   types.TypeTask,
//	}
//
// ContextEntity projects a WorkItem at a fidelity level. Fidelity strictly
// determines which fields are visible, and downgrading never restores a
// dropped field:
//
//	full := types.ProjectEntity(item, types.FidelityFull)
//	ref := full.Downgrade(types.FidelityReference) // id/title/status/type only
//
// # Result Envelope
//
// HydrationResult is constructed fresh for every hydrate call and discarded
// after the response is serialized. No entity id appears in more than one of
// its role arrays.
//
// # Collaborators
//
// EntityStore and OperationLog are host-supplied. The engine never inspects
// data shapes once they cross the boundary: search results arrive as an
// explicit tagged union (SearchHit) rather than duck-typed maps.
package types
