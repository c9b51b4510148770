package index

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// SnapshotVersion couples the snapshot schema and the tokenizer behavior.
// Any mismatch on load forces a full rebuild from the supplied corpus;
// there is no partial migration path.
const SnapshotVersion = "backlogctx/2"

// snapshot is the serialized form of the retrieval index: both lexical
// indices, both vector indices, the id->object caches, and whether
// embeddings were present at build time.
type snapshot struct {
	Version string `json:"version"`

	Entities  map[string]*types.WorkItem `json:"entities"`
	Documents map[string]*types.Document `json:"documents"`

	EntityLexical   *lexicalIndex `json:"entity_lexical"`
	DocumentLexical *lexicalIndex `json:"document_lexical"`
	EntityVectors   *vectorIndex  `json:"entity_vectors"`
	DocumentVectors *vectorIndex  `json:"document_vectors"`

	HasEmbeddings bool `json:"has_embeddings"`
}

// errStaleSnapshot distinguishes a version mismatch from a decode failure;
// both resolve to a rebuild, the distinction only changes the log line.
type errStaleSnapshot struct {
	found string
}

func (e *errStaleSnapshot) Error() string {
	return fmt.Sprintf("stale snapshot: found version %q, want %q", e.found, SnapshotVersion)
}

// encodeSnapshot serializes a snapshot, stamping the current version.
func encodeSnapshot(s *snapshot) ([]byte, error) {
	s.Version = SnapshotVersion
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

// decodeSnapshot parses a snapshot payload, rejecting version mismatches.
func decodeSnapshot(payload []byte) (*snapshot, error) {
	var s snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, &errStaleSnapshot{found: s.Version}
	}
	if s.Entities == nil {
		s.Entities = make(map[string]*types.WorkItem)
	}
	if s.Documents == nil {
		s.Documents = make(map[string]*types.Document)
	}
	if s.EntityLexical == nil {
		s.EntityLexical = newLexicalIndex()
	}
	if s.DocumentLexical == nil {
		s.DocumentLexical = newLexicalIndex()
	}
	if s.EntityVectors == nil {
		s.EntityVectors = newVectorIndex()
	}
	if s.DocumentVectors == nil {
		s.DocumentVectors = newVectorIndex()
	}
	return &s, nil
}
