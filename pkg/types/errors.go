package types

import "errors"

// Engine error taxonomy. ErrNotFound is the only sentinel callers are
// expected to branch on: degraded capability, stale snapshots, budget
// exhaustion and malformed references are reported through result metadata,
// never raised.
var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidID reports a malformed work-item id on a CRUD path.
	ErrInvalidID = errors.New("invalid work item id")

	// ErrEmptyQuery reports a hydrate request with neither id nor query.
	ErrEmptyQuery = errors.New("request requires an id or a query")
)
