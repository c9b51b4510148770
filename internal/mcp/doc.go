// Package mcp implements the Model Context Protocol (MCP) server for
// backlogctx.
//
// The server exposes the context-hydration engine to AI coding assistants
// over JSON-RPC 2.0 on stdio:
//   - hydrate_context: assemble a token-bounded context bundle for one item
//   - search: hybrid lexical+semantic search over items and documents
//   - upsert_entity / remove_entity: work-item CRUD with reindexing
//   - upsert_document / remove_document: document CRUD with reindexing
//   - get_status: corpus counts, index health, embedding availability
//
// # Basic Usage
//
// The server is typically started via the serve command:
//
//	backlogctx serve --config backlogctx.yaml
//
// It then listens on stdin for MCP protocol messages and writes responses
// to stdout. Logging goes to stderr; stdout is reserved for the protocol.
//
// # Tool: hydrate_context
//
//	Request:
//	{
//	  "name": "hydrate_context",
//	  "arguments": {
//	    "id": "TASK-0042",
//	    "depth": 2,
//	    "max_tokens": 4000,
//	    "include_related": true,
//	    "include_activity": true
//	  }
//	}
//
// The response is the serialized hydration result: focal item at full
// fidelity, parent, children, siblings, ancestors, descendants,
// cross-references, related documents, recent activity and metadata
// (token_estimate, truncated, stages_executed). An unresolvable focal
// returns {"found": false} rather than a protocol error.
//
// # Storage
//
// The stand-alone binary binds the engine's collaborator contracts to an
// in-process store seeded from an optional YAML corpus file. A host that
// embeds the engine supplies its own EntityStore, ContextSearcher and
// OperationLog implementations instead.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "backlogctx": {
//	      "command": "/usr/local/bin/backlogctx",
//	      "args": ["serve"],
//	      "env": {
//	        "OPENAI_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Parameter validation failures come back as tool error results. Data
// conditions (absent focal, empty query match) are plain results; only
// violated collaborator contracts surface as errors.
package mcp
