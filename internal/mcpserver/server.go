// Package mcpserver is the MCP tool dispatcher (spec.md §4.11): it
// registers CodePrism's tools against a real
// github.com/modelcontextprotocol/go-sdk/mcp server, validates
// parameters with JSON Schema, consults the analysis cache, and
// formats every result — success or failure — as ToolCallContent,
// grounded on the teacher's internal/mcp/server.go registration
// pattern.
package mcpserver

import (
	"context"
	"time"

	"github.com/codeprism-dev/codeprism/internal/anacache"
	"github.com/codeprism-dev/codeprism/internal/bulkindex"
	"github.com/codeprism-dev/codeprism/internal/contentindex"
	"github.com/codeprism-dev/codeprism/internal/errors"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/logging"
	"github.com/codeprism-dev/codeprism/internal/observability"
	"github.com/codeprism-dev/codeprism/internal/scanner"
	"github.com/codeprism-dev/codeprism/internal/session"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wires the graph store, content index, analysis cache, and
// (optionally) an incremental indexer behind the MCP tool surface.
// Every registered tool call is instrumented into metrics and the
// workflow session, ambiently, regardless of which collaborators a
// caller wires in (spec.md §4.12, §4.13). The circuit-breaker registry
// is only read, by health_check; tool calls do not record into it.
type Server struct {
	mcp *mcp.Server

	store   *graphstore.Store
	content *contentindex.Index
	cache   *anacache.Cache
	indexer *bulkindex.Indexer

	repoID string
	root   string

	log      *logging.Logger
	metrics  *observability.Metrics
	breakers *observability.Registry
	sandbox  *observability.Sandbox
	sess     *session.Session
}

// Config supplies the collaborators a Server dispatches tool calls
// into. Indexer, Root, and Cache may be nil: without an Indexer,
// reindex_file is unavailable; without a Cache, every tool always
// recomputes.
type Config struct {
	Name    string
	Version string

	Store   *graphstore.Store
	Content *contentindex.Index
	Cache   *anacache.Cache
	Indexer *bulkindex.Indexer

	RepoID string
	Root   string

	Log     *logging.Logger
	Budget  observability.Budget // sandbox resource budget; zero value uses observability.DefaultBudget()
}

// New builds a Server and registers every tool against a fresh
// mcp.Server, mirroring the teacher's NewServer + registerTools split.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	if cfg.Name == "" {
		cfg.Name = "codeprism-mcp-server"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	budget := cfg.Budget
	if budget == (observability.Budget{}) {
		budget = observability.DefaultBudget()
	}
	metrics := observability.New()

	s := &Server{
		store:    cfg.Store,
		content:  cfg.Content,
		cache:    cfg.Cache,
		indexer:  cfg.Indexer,
		repoID:   cfg.RepoID,
		root:     cfg.Root,
		log:      cfg.Log,
		metrics:  metrics,
		breakers: observability.NewRegistry(),
		sandbox:  observability.NewSandbox(budget, metrics),
		sess:     session.New(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	s.registerTools()
	return s
}

// toolHandler is the signature every registered MCP tool handler has.
// Declared as an alias, not a defined type, so instrumented handlers
// stay assignable everywhere a bare handler func value is (AddTool's
// parameter type among them).
type toolHandler = func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// instrument wraps a tool handler so every call — regardless of which
// tool — feeds the metrics snapshot and the workflow session (spec.md
// §4.12, §4.13), without each handler needing to do this itself.
func (s *Server) instrument(name string, h toolHandler) toolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := h(ctx, req)
		dur := time.Since(start)

		success := err == nil && (res == nil || !res.IsError)
		if success {
			s.metrics.RecordSuccess(name, dur)
		} else {
			cause := err
			if cause == nil && res != nil {
				cause = errors.New(errors.KindExecution, errors.SeverityError, name, nil)
			}
			s.metrics.RecordFailure(name, dur, cause)
		}
		s.sess.Record(name, success, time.Now())
		return res, err
	}
}

// Start runs the server over the stdio transport until ctx is
// cancelled (spec.md §4.10: the stdio MCP client owns stdout/stdin;
// internal/logging.Quiet should be set before calling this).
func (s *Server) Start(ctx context.Context) error {
	s.log.Infof("mcpserver: starting stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func schema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func strProp(desc string) *jsonschema.Schema { return &jsonschema.Schema{Type: "string", Description: desc} }
func intProp(desc string) *jsonschema.Schema { return &jsonschema.Schema{Type: "integer", Description: desc} }
func boolProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}
func numProp(desc string) *jsonschema.Schema { return &jsonschema.Schema{Type: "number", Description: desc} }
func strArrayProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: desc}
}

// classifyForReindex mirrors scanner.Scan's per-file classification
// for the single-file path reindex_file takes.
func classifyForReindex(relPath string) scanner.DiscoveredFile {
	return scanner.DiscoveredFile{Path: relPath, Language: scanner.ClassifyExtension(relPath)}
}
