package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/backlogctx-mcp/internal/config"
	"github.com/dshills/backlogctx-mcp/internal/embedder"
	"github.com/dshills/backlogctx-mcp/internal/hydrate"
	"github.com/dshills/backlogctx-mcp/internal/index"
)

const (
	// ServerName is the MCP server name
	ServerName = "backlogctx-mcp"
	// ServerVersion is the current server version
	ServerVersion = "2.0.0"
)

// Server wraps the MCP server with the engine and its collaborators.
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	store    *memStore
	index    *index.Index
	hydrator *hydrate.Hydrator
	logger   *slog.Logger
}

// NewServer wires the stand-alone server: in-process store (optionally
// seeded from a YAML corpus), snapshot-backed retrieval index, lazy
// embedder and the hydration pipeline. A stale or missing snapshot
// triggers a full rebuild from the store before serving.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := newMemStore()
	if cfg.CorpusPath != "" {
		if err := store.LoadCorpus(cfg.CorpusPath); err != nil {
			return nil, fmt.Errorf("seed corpus: %w", err)
		}
	}

	snapStore, err := index.NewSQLiteStore(cfg.Snapshot.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	lazy := embedder.NewLazy(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Endpoint:  cfg.Embedding.Endpoint,
		CacheSize: cfg.Embedding.CacheSize,
	}, logger)

	idx := index.New(cfg.Search, cfg.Snapshot, snapStore, lazy, logger)

	ctx := context.Background()
	if !idx.Load(ctx) {
		entities, documents := store.Snapshot()
		idx.Reindex(ctx, entities, documents)
		logger.Info("index rebuilt from corpus",
			slog.Int("entities", len(entities)),
			slog.Int("documents", len(documents)))
	}

	hydrator := hydrate.New(cfg.Hydration, store, idx, store, logger)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		cfg:      cfg,
		store:    store,
		index:    idx,
		hydrator: hydrator,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until the transport shuts
// down, then flushes the pending snapshot.
func (s *Server) Serve(ctx context.Context) error {
	defer s.shutdown()
	return server.ServeStdio(s.mcp)
}

// shutdown flushes the index snapshot and releases storage.
func (s *Server) shutdown() {
	s.index.Flush()
	if err := s.index.Close(); err != nil {
		s.logger.Warn("index close failed", slog.String("error", err.Error()))
	}
}

// registerTools registers the engine's tool surface.
func (s *Server) registerTools() {
	s.mcp.AddTool(hydrateContextTool(), s.handleHydrateContext)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(upsertEntityTool(), s.handleUpsertEntity)
	s.mcp.AddTool(removeEntityTool(), s.handleRemoveEntity)
	s.mcp.AddTool(upsertDocumentTool(), s.handleUpsertDocument)
	s.mcp.AddTool(removeDocumentTool(), s.handleRemoveDocument)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
