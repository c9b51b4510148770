package types

import "time"

// OperationLogEntry is one record from the host's operation log, as consumed
// through the OperationLog collaborator. The engine never writes these.
type OperationLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Tool      string    `json:"tool"`
	EntityID  string    `json:"entity_id"`
	Actor     string    `json:"actor"`
	ActorType string    `json:"actor_type,omitempty"`

	// ChangedFields lists the entity fields the operation touched, when the
	// log recorded them. Used to render human-readable summaries.
	ChangedFields []string `json:"changed_fields,omitempty"`
}

// ActivityEntry is a derived, immutable view of one operation-log record,
// rendered for the hydration response. Never persisted by the engine.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Tool      string    `json:"tool"`
	EntityID  string    `json:"entity_id"`
	Actor     string    `json:"actor"`
	Summary   string    `json:"summary"`
}

// SessionSummary describes the most recent contiguous run of same-actor
// operations on the focal entity. At most one appears per hydration response.
type SessionSummary struct {
	Actor          string    `json:"actor"`
	ActorType      string    `json:"actor_type,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	OperationCount int       `json:"operation_count"`
	Summary        string    `json:"summary"`
}
