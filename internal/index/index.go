// Package index implements the retrieval index of the context engine: a
// lexical inverted index plus an optional vector index over two document
// classes (work items and documents), unified ranked search with weighted
// fusion, CRUD, and versioned snapshot persistence with a debounced writer.
package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/backlogctx-mcp/internal/config"
	"github.com/dshills/backlogctx-mcp/internal/embedder"
	"github.com/dshills/backlogctx-mcp/internal/ranking"
	"github.com/dshills/backlogctx-mcp/internal/snippet"
	"github.com/dshills/backlogctx-mcp/pkg/types"
)

// SortRecent orders unified search results by native updated_at descending,
// bypassing fusion and the coordination bonus. SortRelevant is the default
// fused ranking.
const (
	SortRelevant = "relevant"
	SortRecent   = "recent"
)

// overFetchFactor gives fusion headroom: each side retrieves this multiple
// of the requested limit before the sequences are merged.
const overFetchFactor = 2

// cacheEntry is one cached search response with its expiry.
type cacheEntry struct {
	hits      []types.SearchHit
	expiresAt time.Time
}

// Index owns the lexical and vector indices for work items and documents.
// Reads are safe under concurrency; mutation is single-writer by the
// surrounding system's assumption, and an in-flight search observes either
// the pre- or post-mutation state, never a partial one.
type Index struct {
	cfg    config.Search
	logger *slog.Logger
	store  SnapshotStore
	lazy   *embedder.Lazy

	mu        sync.RWMutex
	entities  map[string]*types.WorkItem
	documents map[string]*types.Document
	entityLex *lexicalIndex
	docLex    *lexicalIndex
	entityVec *vectorIndex
	docVec    *vectorIndex

	cache   *lru.Cache[[32]byte, *cacheEntry]
	flusher *debouncer
}

// New constructs an empty index. Call Load to restore a snapshot or
// Reindex to build from a corpus.
func New(cfg config.Search, snapCfg config.Snapshot, store SnapshotStore, lazy *embedder.Lazy, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// Unreachable with the positive size guarded above.
		panic(fmt.Sprintf("create search cache: %v", err))
	}

	ix := &Index{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "index")),
		store:     store,
		lazy:      lazy,
		entities:  make(map[string]*types.WorkItem),
		documents: make(map[string]*types.Document),
		entityLex: newLexicalIndex(),
		docLex:    newLexicalIndex(),
		entityVec: newVectorIndex(),
		docVec:    newVectorIndex(),
		cache:     cache,
	}
	ix.flusher = newDebouncer(snapCfg.Debounce, ix.persist)
	return ix
}

// Load restores the index from its snapshot store. It returns true when a
// current-version snapshot was installed; false means the caller should
// Reindex from the corpus. Load never fails hard for data-quality reasons:
// a stale or corrupt snapshot just logs and reports false.
func (ix *Index) Load(ctx context.Context) bool {
	payload, err := ix.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			ix.logger.Warn("snapshot load failed, rebuilding", slog.String("error", err.Error()))
		}
		return false
	}

	snap, err := decodeSnapshot(payload)
	if err != nil {
		var stale *errStaleSnapshot
		if errors.As(err, &stale) {
			ix.logger.Info("snapshot version mismatch, rebuilding",
				slog.String("found", stale.found),
				slog.String("want", SnapshotVersion))
		} else {
			ix.logger.Warn("snapshot decode failed, rebuilding", slog.String("error", err.Error()))
		}
		return false
	}

	ix.mu.Lock()
	ix.entities = snap.Entities
	ix.documents = snap.Documents
	ix.entityLex = snap.EntityLexical
	ix.docLex = snap.DocumentLexical
	ix.entityVec = snap.EntityVectors
	ix.docVec = snap.DocumentVectors
	ix.mu.Unlock()

	ix.logger.Info("snapshot loaded",
		slog.Int("entities", len(snap.Entities)),
		slog.Int("documents", len(snap.Documents)),
		slog.Bool("embeddings", snap.HasEmbeddings))
	return true
}

// Reindex rebuilds the index in full from the supplied corpus, replacing
// all current state, then schedules a snapshot write.
func (ix *Index) Reindex(ctx context.Context, entities []*types.WorkItem, documents []*types.Document) {
	entityLex := newLexicalIndex()
	docLex := newLexicalIndex()
	entityVec := newVectorIndex()
	docVec := newVectorIndex()
	entityMap := make(map[string]*types.WorkItem, len(entities))
	docMap := make(map[string]*types.Document, len(documents))

	for _, item := range entities {
		entityMap[item.ID] = item
		entityLex.add(item.ID, entityFields(item))
		if vec := ix.embed(ctx, item.SearchText()); vec != nil {
			entityVec.add(item.ID, vec)
		}
	}
	for _, doc := range documents {
		docMap[doc.ID] = doc
		docLex.add(doc.ID, documentFields(doc))
		if vec := ix.embed(ctx, doc.SearchText()); vec != nil {
			docVec.add(doc.ID, vec)
		}
	}

	ix.mu.Lock()
	ix.entities = entityMap
	ix.documents = docMap
	ix.entityLex = entityLex
	ix.docLex = docLex
	ix.entityVec = entityVec
	ix.docVec = docVec
	ix.mu.Unlock()

	ix.cache.Purge()
	ix.flusher.trigger()
	ix.logger.Info("reindexed corpus",
		slog.Int("entities", len(entityMap)),
		slog.Int("documents", len(docMap)))
}

// UpsertEntity adds or replaces a work item. Updating an absent id behaves
// as insert.
func (ix *Index) UpsertEntity(ctx context.Context, item *types.WorkItem) error {
	if item == nil || !types.ValidID(item.ID) {
		return types.ErrInvalidID
	}

	// Embedding happens before taking the write lock: provider calls may
	// hit the network.
	vec := ix.embed(ctx, item.SearchText())

	ix.mu.Lock()
	ix.entities[item.ID] = item
	ix.entityLex.add(item.ID, entityFields(item))
	if vec != nil {
		ix.entityVec.add(item.ID, vec)
	} else {
		ix.entityVec.remove(item.ID)
	}
	ix.mu.Unlock()

	ix.afterMutation()
	return nil
}

// RemoveEntity drops a work item from the index. Absent ids are a no-op.
func (ix *Index) RemoveEntity(id string) {
	ix.mu.Lock()
	_, existed := ix.entities[id]
	if existed {
		delete(ix.entities, id)
		ix.entityLex.remove(id)
		ix.entityVec.remove(id)
	}
	ix.mu.Unlock()

	if existed {
		ix.afterMutation()
	}
}

// UpsertDocument adds or replaces a document. Updating an absent id behaves
// as insert.
func (ix *Index) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if doc == nil || doc.ID == "" {
		return types.ErrInvalidID
	}

	vec := ix.embed(ctx, doc.SearchText())

	ix.mu.Lock()
	ix.documents[doc.ID] = doc
	ix.docLex.add(doc.ID, documentFields(doc))
	if vec != nil {
		ix.docVec.add(doc.ID, vec)
	} else {
		ix.docVec.remove(doc.ID)
	}
	ix.mu.Unlock()

	ix.afterMutation()
	return nil
}

// RemoveDocument drops a document from the index. Absent ids are a no-op.
func (ix *Index) RemoveDocument(id string) {
	ix.mu.Lock()
	_, existed := ix.documents[id]
	if existed {
		delete(ix.documents, id)
		ix.docLex.remove(id)
		ix.docVec.remove(id)
	}
	ix.mu.Unlock()

	if existed {
		ix.afterMutation()
	}
}

// Search runs the unified ranked search. An empty or whitespace query
// returns empty immediately. Lexical and vector retrieval run concurrently
// and are joined before fusion; recent mode bypasses fusion and the
// coordination bonus, delegating order to updated_at.
func (ix *Index) Search(ctx context.Context, query string, opts types.SearchOptions) ([]types.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = ix.cfg.DefaultLimit
	}
	if limit > ix.cfg.MaxLimit {
		limit = ix.cfg.MaxLimit
	}

	key := ix.cacheKey(query, opts, limit)
	if hits, ok := ix.cachedHits(key); ok {
		return hits, nil
	}

	var hits []types.SearchHit
	if opts.Sort == SortRecent {
		hits = ix.searchRecent(query, opts, limit)
	} else {
		fetched, err := ix.searchFused(ctx, query, opts, limit)
		if err != nil {
			return nil, err
		}
		hits = fetched
	}

	if len(hits) > 0 {
		ttl := ix.cfg.CacheTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		ix.cache.Add(key, &cacheEntry{hits: hits, expiresAt: time.Now().Add(ttl)})
	}
	return hits, nil
}

// searchFused is the relevant-mode path: concurrent lexical and vector
// retrieval with over-fetch, min-max normalization, weighted fusion and
// the coordination bonus, truncated to limit.
func (ix *Index) searchFused(ctx context.Context, query string, opts types.SearchOptions, limit int) ([]types.SearchHit, error) {
	fetch := limit * overFetchFactor
	wantEntities, wantDocs := classesFor(opts)
	allowed := ix.entityFilter(opts)

	var lexical, vector []ranking.Hit
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ix.mu.RLock()
		defer ix.mu.RUnlock()
		if wantEntities {
			lexical = append(lexical, ix.entityLex.search(query, fetch, allowed)...)
		}
		if wantDocs {
			lexical = append(lexical, ix.docLex.search(query, fetch, nil)...)
		}
		sortHitsDesc(lexical)
		if len(lexical) > fetch {
			lexical = lexical[:fetch]
		}
		return nil
	})

	g.Go(func() error {
		queryVec := ix.embedQuery(gctx, query)
		if queryVec == nil {
			return nil
		}
		ix.mu.RLock()
		defer ix.mu.RUnlock()
		if wantEntities {
			vector = append(vector, ix.entityVec.search(queryVec, fetch, allowed)...)
		}
		if wantDocs {
			vector = append(vector, ix.docVec.search(queryVec, fetch, nil)...)
		}
		sortHitsDesc(vector)
		if len(vector) > fetch {
			vector = vector[:fetch]
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := ranking.Weights{Text: ix.cfg.TextWeight, Vector: ix.cfg.VectorWeight}
	fused := ranking.Fuse(ranking.Normalize(lexical), ranking.Normalize(vector), weights)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fused = ranking.CoordinationBonus(fused, query, ix.searchTextLocked, ix.cfg.CoordinationBonus)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return ix.buildHitsLocked(fused, query), nil
}

// searchRecent matches candidates lexically and orders them by updated_at
// descending. Documents carry no timestamp and sort after all entities,
// ordered by path.
func (ix *Index) searchRecent(query string, opts types.SearchOptions, limit int) []types.SearchHit {
	fetch := limit * overFetchFactor
	wantEntities, wantDocs := classesFor(opts)
	allowed := ix.entityFilter(opts)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var candidates []ranking.Hit
	if wantEntities {
		candidates = append(candidates, ix.entityLex.search(query, fetch, allowed)...)
	}
	if wantDocs {
		candidates = append(candidates, ix.docLex.search(query, fetch, nil)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, aIsEntity := ix.entities[candidates[i].ID]
		b, bIsEntity := ix.entities[candidates[j].ID]
		switch {
		case aIsEntity && bIsEntity:
			return a.UpdatedAt.After(b.UpdatedAt)
		case aIsEntity != bIsEntity:
			return aIsEntity
		default:
			return ix.documents[candidates[i].ID].Path < ix.documents[candidates[j].ID].Path
		}
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return ix.buildHitsLocked(candidates, query)
}

// Counts reports the indexed corpus sizes and vector coverage.
func (ix *Index) Counts() (entities, documents, entityVectors, documentVectors int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entities), len(ix.documents), ix.entityVec.size(), ix.docVec.size()
}

// EmbeddingsAvailable reports whether the vector side is live.
func (ix *Index) EmbeddingsAvailable() bool {
	return ix.lazy != nil && ix.lazy.Available()
}

// Flush forces any pending debounced snapshot write to run now.
func (ix *Index) Flush() {
	ix.flusher.flush()
}

// Close flushes pending persistence and releases the snapshot store.
func (ix *Index) Close() error {
	ix.flusher.flush()
	ix.flusher.stop()
	return ix.store.Close()
}

// afterMutation invalidates the search cache and schedules a snapshot
// write. The debouncer coalesces mutation bursts so steady-state write
// amplification stays O(1) per quiet period.
func (ix *Index) afterMutation() {
	ix.cache.Purge()
	ix.flusher.trigger()
}

// persist serializes the current state and writes it to the snapshot
// store. Failures are logged, never raised: a crash before a flush means
// the next startup rebuilds from the corpus.
func (ix *Index) persist() {
	ix.mu.RLock()
	snap := &snapshot{
		Entities:        ix.entities,
		Documents:       ix.documents,
		EntityLexical:   ix.entityLex,
		DocumentLexical: ix.docLex,
		EntityVectors:   ix.entityVec,
		DocumentVectors: ix.docVec,
		HasEmbeddings:   ix.entityVec.size() > 0 || ix.docVec.size() > 0,
	}
	payload, err := encodeSnapshot(snap)
	ix.mu.RUnlock()

	if err != nil {
		ix.logger.Warn("snapshot encode failed", slog.String("error", err.Error()))
		return
	}
	if err := ix.store.Save(context.Background(), payload); err != nil {
		ix.logger.Warn("snapshot write failed", slog.String("error", err.Error()))
		return
	}
	ix.logger.Debug("snapshot written", slog.Int("bytes", len(payload)))
}

// embed returns a unit vector for text when embeddings are live, nil when
// disabled or failing. The first call triggers lazy initialization.
func (ix *Index) embed(ctx context.Context, text string) []float32 {
	if ix.lazy == nil {
		return nil
	}
	emb, ok := ix.lazy.Get()
	if !ok {
		return nil
	}
	result, err := emb.Embed(ctx, text)
	if err != nil {
		ix.logger.Debug("embedding failed, hit degrades to lexical",
			slog.String("error", err.Error()))
		return nil
	}
	return result.Vector
}

// embedQuery embeds the query text, returning nil on any failure so the
// search silently degrades to lexical-only.
func (ix *Index) embedQuery(ctx context.Context, query string) []float32 {
	return ix.embed(ctx, query)
}

// searchTextLocked is the coordination-bonus text lookup. Callers hold at
// least a read lock.
func (ix *Index) searchTextLocked(id string) string {
	if item, ok := ix.entities[id]; ok {
		return item.SearchText()
	}
	if doc, ok := ix.documents[id]; ok {
		return doc.SearchText()
	}
	return ""
}

// buildHitsLocked materializes ranked ids into tagged search hits with
// snippets. Callers hold at least a read lock. Ids that vanished between
// ranking and assembly are skipped.
func (ix *Index) buildHitsLocked(ranked []ranking.Hit, query string) []types.SearchHit {
	hits := make([]types.SearchHit, 0, len(ranked))
	for _, r := range ranked {
		if item, ok := ix.entities[r.ID]; ok {
			sn := snippet.ForEntity(item, query)
			hits = append(hits, types.SearchHit{
				Kind:          types.HitEntity,
				Entity:        item,
				Score:         r.Score,
				Snippet:       sn.Snippet,
				MatchedFields: sn.MatchedFields,
			})
			continue
		}
		if doc, ok := ix.documents[r.ID]; ok {
			sn := snippet.ForDocument(doc, query)
			hits = append(hits, types.SearchHit{
				Kind:          types.HitDocument,
				Document:      doc,
				Score:         r.Score,
				Snippet:       sn.Snippet,
				MatchedFields: sn.MatchedFields,
			})
		}
	}
	return hits
}

// entityFilter builds the candidate predicate for entity-class retrieval
// from the search options. A nil return allows everything.
func (ix *Index) entityFilter(opts types.SearchOptions) func(id string) bool {
	entityTypes := make(map[types.WorkItemType]struct{})
	for _, t := range opts.Types {
		if t != "document" {
			entityTypes[types.WorkItemType(t)] = struct{}{}
		}
	}
	if len(entityTypes) == 0 && opts.Status == "" && opts.ParentID == "" {
		return nil
	}

	return func(id string) bool {
		item, ok := ix.entities[id]
		if !ok {
			return false
		}
		if len(entityTypes) > 0 {
			if _, ok := entityTypes[item.Type]; !ok {
				return false
			}
		}
		if opts.Status != "" && item.Status != opts.Status {
			return false
		}
		if opts.ParentID != "" && item.Parent() != opts.ParentID {
			return false
		}
		return true
	}
}

// cachedHits returns a valid cached response, evicting expired entries.
func (ix *Index) cachedHits(key [32]byte) ([]types.SearchHit, bool) {
	entry, ok := ix.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		ix.cache.Remove(key)
		return nil, false
	}
	return entry.hits, true
}

// cacheKey hashes the query and options into a deterministic cache key.
func (ix *Index) cacheKey(query string, opts types.SearchOptions, limit int) [32]byte {
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("|")
	b.WriteString(strings.Join(opts.Types, ","))
	b.WriteString("|")
	b.WriteString(string(opts.Status))
	b.WriteString("|")
	b.WriteString(opts.ParentID)
	b.WriteString("|")
	b.WriteString(opts.Sort)
	b.WriteString("|")
	b.WriteString(fmt.Sprintf("%d", limit))
	return sha256.Sum256([]byte(b.String()))
}

// classesFor decides which document classes a search touches based on the
// types filter. An empty filter searches both.
func classesFor(opts types.SearchOptions) (entities, documents bool) {
	if len(opts.Types) == 0 {
		return true, true
	}
	for _, t := range opts.Types {
		if t == "document" {
			documents = true
		} else {
			entities = true
		}
	}
	return entities, documents
}

// entityFields maps a work item to its boosted lexical fields.
func entityFields(item *types.WorkItem) []weightedField {
	var refs strings.Builder
	for _, r := range item.References {
		refs.WriteString(r.URL)
		refs.WriteString(" ")
		refs.WriteString(r.Title)
		refs.WriteString(" ")
	}
	return []weightedField{
		{item.Title, boostTitle},
		{item.Description, boostBody},
		{strings.Join(item.Evidence, " "), boostPeripheral},
		{strings.Join(item.BlockedReason, " "), boostPeripheral},
		{refs.String(), boostPeripheral},
	}
}

// documentFields maps a document to its boosted lexical fields.
func documentFields(doc *types.Document) []weightedField {
	return []weightedField{
		{doc.Title, boostTitle},
		{doc.Content, boostBody},
		{doc.Path, boostPeripheral},
	}
}

// sortHitsDesc orders hits by score descending with id tiebreak.
func sortHitsDesc(hits []ranking.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
