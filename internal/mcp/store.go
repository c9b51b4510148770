package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// memStore is the in-process binding of the collaborator contracts. It lets
// the binary run stand-alone: entities and documents live in memory, seeded
// from an optional YAML corpus file, and every mutation appends to an
// in-memory operation log. The hydration engine only ever sees the
// pkg/types interfaces; a host embedding the engine substitutes its own
// implementations.
type memStore struct {
	mu        sync.RWMutex
	entities  map[string]*types.WorkItem
	documents map[string]*types.Document
	log       []types.OperationLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		entities:  make(map[string]*types.WorkItem),
		documents: make(map[string]*types.Document),
	}
}

func (s *memStore) LookupEntity(_ context.Context, id string) (*types.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.entities[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return item, nil
}

func (s *memStore) ListEntities(_ context.Context, filter types.ListFilter) ([]*types.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.WorkItem, 0, len(s.entities))
	for _, item := range s.entities {
		if filter.ParentID != "" && item.Parent() != filter.ParentID {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memStore) ListDocuments(_ context.Context) ([]*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReadOperations returns log entries newest-first, optionally filtered by
// entity id.
func (s *memStore) ReadOperations(_ context.Context, opts types.ReadOptions) ([]types.OperationLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.OperationLogEntry
	for i := len(s.log) - 1; i >= 0; i-- {
		e := s.log[i]
		if opts.EntityID != "" && e.EntityID != opts.EntityID {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// PutEntity stores item and records the operation.
func (s *memStore) PutEntity(item *types.WorkItem, actor, tool string, changed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[item.ID] = item
	s.appendLocked(tool, item.ID, actor, changed)
}

// DeleteEntity removes id, reporting whether it existed.
func (s *memStore) DeleteEntity(id, actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.entities[id]
	delete(s.entities, id)
	if existed {
		s.appendLocked("remove_entity", id, actor, nil)
	}
	return existed
}

// PutDocument stores doc and records the operation.
func (s *memStore) PutDocument(doc *types.Document, actor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	s.appendLocked("upsert_document", doc.ID, actor, nil)
}

// DeleteDocument removes id, reporting whether it existed.
func (s *memStore) DeleteDocument(id, actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.documents[id]
	delete(s.documents, id)
	if existed {
		s.appendLocked("remove_document", id, actor, nil)
	}
	return existed
}

func (s *memStore) appendLocked(tool, entityID, actor string, changed []string) {
	if actor == "" {
		actor = "mcp-client"
	}
	s.log = append(s.log, types.OperationLogEntry{
		Timestamp:     time.Now().UTC(),
		Tool:          tool,
		EntityID:      entityID,
		Actor:         actor,
		ActorType:     "agent",
		ChangedFields: changed,
	})
}

// Counts reports the stored entity and document totals.
func (s *memStore) Counts() (entities, documents int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities), len(s.documents)
}

// Snapshot returns copies of the listing slices for index seeding.
func (s *memStore) Snapshot() ([]*types.WorkItem, []*types.Document) {
	entities, _ := s.ListEntities(context.Background(), types.ListFilter{})
	documents, _ := s.ListDocuments(context.Background())
	return entities, documents
}

// corpusFile is the YAML shape of a seed corpus.
type corpusFile struct {
	Entities []struct {
		ID            string   `yaml:"id"`
		Title         string   `yaml:"title"`
		Status        string   `yaml:"status"`
		Type          string   `yaml:"type"`
		ParentID      string   `yaml:"parent_id"`
		Description   string   `yaml:"description"`
		Evidence      []string `yaml:"evidence"`
		BlockedReason []string `yaml:"blocked_reason"`
		References    []struct {
			URL   string `yaml:"url"`
			Title string `yaml:"title"`
		} `yaml:"references"`
		CreatedAt time.Time `yaml:"created_at"`
		UpdatedAt time.Time `yaml:"updated_at"`
	} `yaml:"entities"`
	Documents []struct {
		ID      string `yaml:"id"`
		Path    string `yaml:"path"`
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
	} `yaml:"documents"`
	Operations []struct {
		Timestamp     time.Time `yaml:"timestamp"`
		Tool          string    `yaml:"tool"`
		EntityID      string    `yaml:"entity_id"`
		Actor         string    `yaml:"actor"`
		ActorType     string    `yaml:"actor_type"`
		ChangedFields []string  `yaml:"changed_fields"`
	} `yaml:"operations"`
}

// LoadCorpus seeds the store from a YAML corpus file. Entities with
// malformed ids are rejected so the index never sees them.
func (s *memStore) LoadCorpus(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read corpus %s: %w", path, err)
	}

	var corpus corpusFile
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return fmt.Errorf("parse corpus %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range corpus.Entities {
		if !types.ValidID(e.ID) {
			return fmt.Errorf("corpus %s: malformed entity id %q", path, e.ID)
		}
		item := &types.WorkItem{
			ID:            e.ID,
			Title:         e.Title,
			Status:        types.WorkItemStatus(e.Status),
			Type:          types.WorkItemType(e.Type),
			ParentID:      e.ParentID,
			Description:   e.Description,
			Evidence:      e.Evidence,
			BlockedReason: e.BlockedReason,
			CreatedAt:     e.CreatedAt,
			UpdatedAt:     e.UpdatedAt,
		}
		if item.Type == "" {
			item.Type = types.TypeForID(e.ID)
		}
		for _, r := range e.References {
			item.References = append(item.References, types.Reference{URL: r.URL, Title: r.Title})
		}
		s.entities[item.ID] = item
	}

	for _, d := range corpus.Documents {
		s.documents[d.ID] = &types.Document{ID: d.ID, Path: d.Path, Title: d.Title, Content: d.Content}
	}

	for _, op := range corpus.Operations {
		s.log = append(s.log, types.OperationLogEntry{
			Timestamp:     op.Timestamp,
			Tool:          op.Tool,
			EntityID:      op.EntityID,
			Actor:         op.Actor,
			ActorType:     op.ActorType,
			ChangedFields: op.ChangedFields,
		})
	}
	sort.SliceStable(s.log, func(i, j int) bool { return s.log[i].Timestamp.Before(s.log[j].Timestamp) })
	return nil
}
