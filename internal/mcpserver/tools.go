package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeprism-dev/codeprism/internal/analysis"
	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/bulkindex"
	"github.com/codeprism-dev/codeprism/internal/contentindex"
	"github.com/codeprism-dev/codeprism/internal/identity"
	"github.com/codeprism-dev/codeprism/internal/observability"
	"github.com/codeprism-dev/codeprism/internal/query"
	"github.com/codeprism-dev/codeprism/internal/resolver"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools registers every tool named in spec.md §4.11's list,
// plus the supplemental reindex_file tool from SPEC_FULL.md §5.
func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "repository_stats",
		Description: "Aggregate statistics over the indexed graph: node/edge counts by kind and per-language breakdown.",
		InputSchema: schema(nil),
	}, s.instrument("repository_stats", s.handleRepositoryStats))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "content_stats",
		Description: "Aggregate statistics over the content index: chunk and file counts, chunk counts by content type.",
		InputSchema: schema(nil),
	}, s.instrument("content_stats", s.handleContentStats))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_files",
		Description: "Find files by filename, extension, or path component.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"pattern": strProp("Filename, extension (e.g. \".go\"), or path component to match"),
		}, "pattern"),
	}, s.instrument("find_files", s.handleFindFiles))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search the graph for symbols by name, ranked by match tier then kind then file path.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"pattern":        strProp("Name pattern; a regular expression, or \"*\" to match any name"),
			"kinds":          strArrayProp("Restrict to these symbol kinds (e.g. [\"class\", \"function\"])"),
			"limit":          intProp("Maximum results (default 50)"),
			"inherits_from":  strProp("Restrict to symbols transitively extending this class name"),
			"has_metaclass":  strProp("Restrict to symbols using this metaclass name"),
			"uses_mixin":     strProp("Restrict to symbols transitively extending this mixin name"),
		}, "pattern"),
	}, s.instrument("search_symbols", s.handleSearchSymbols))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_content",
		Description: "Full-text search over the content index: literal/regex matching, content-type filtering, scored results with optional context lines.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"text":             strProp("Query text (tokens are AND-ed) or regex pattern"),
			"regex":            boolProp("Treat text as a regular expression"),
			"case_sensitive":   boolProp("Case-sensitive matching (default false)"),
			"allowed_types":    strArrayProp("Restrict to these content-type categories (Code, Documentation, Comment, Configuration, PlainText)"),
			"include_patterns": strArrayProp("Restrict to file paths matching one of these regexes"),
			"exclude_patterns": strArrayProp("Exclude file paths matching one of these regexes"),
			"max_results":      intProp("Maximum results (default 50)"),
			"include_context":  boolProp("Include surrounding lines for each match"),
			"context_lines":    intProp("Number of context lines before/after a match"),
		}, "text"),
	}, s.instrument("search_content", s.handleSearchContent))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "explain_symbol",
		Description: "Explain a symbol found by an earlier search: its declaration, references, inheritance (if a class), and complexity (if callable).",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"node_id": strProp("Node id returned by search_symbols"),
		}, "node_id"),
	}, s.instrument("explain_symbol", s.handleExplainSymbol))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_references",
		Description: "Find every incoming edge referencing a symbol.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"node_id": strProp("Node id to find references to"),
		}, "node_id"),
	}, s.instrument("find_references", s.handleFindReferences))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_dependencies",
		Description: "Find what a symbol depends on, directly or transitively.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"node_id": strProp("Node id to find dependencies of"),
			"mode":    strProp("\"direct\" (default) or \"transitive\""),
		}, "node_id"),
	}, s.instrument("find_dependencies", s.handleFindDependencies))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_inheritance",
		Description: "Trace a class's inheritance: bases, subclasses, mixins, metaclass, and a C3-linearized method resolution order.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"node_id": strProp("Class node id"),
		}, "node_id"),
	}, s.instrument("trace_inheritance", s.handleTraceInheritance))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "detect_patterns",
		Description: "Detect conflict-prone structural patterns (god objects, registration functions, switch factories, enum/config aggregation).",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"min_confidence": numProp("Minimum confidence to report, 0-1 (default 0.6)"),
		}),
	}, s.instrument("detect_patterns", s.handleDetectPatterns))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_complexity",
		Description: "Compute cyclomatic complexity for a symbol, or every symbol in a file.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"node_id":   strProp("Function/method/constructor node id"),
			"file_path": strProp("Alternative to node_id: compute complexity for every callable in this file"),
		}),
	}, s.instrument("analyze_complexity", s.handleAnalyzeComplexity))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "reindex_file",
		Description: "Incrementally reparse one file and fold the result into the graph, re-running cross-file resolution for its symbols.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"path": strProp("Path relative to the indexed repository root"),
		}, "path"),
	}, s.instrument("reindex_file", s.handleReindexFile))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "session_status",
		Description: "Report the current workflow stage, the full tool-call history, and an advisory suggestion for what to call next.",
		InputSchema: schema(nil),
	}, s.instrument("session_status", s.handleSessionStatus))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "health_check",
		Description: "Report operational health: per-tool error rates and latency, circuit breaker states, and sandbox resource usage against budget.",
		InputSchema: schema(nil),
	}, s.instrument("health_check", s.handleHealthCheck))
}

func unmarshalParams[T any](req *mcp.CallToolRequest) (T, error) {
	var p T
	if len(req.Params.Arguments) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return p, fmt.Errorf("invalid parameters: %w", err)
	}
	return p, nil
}

func nodeToJSON(n ast.Node) map[string]any {
	return map[string]any{
		"id":        n.ID.String(),
		"kind":      n.Kind.String(),
		"name":      n.Name,
		"language":  n.Language,
		"file_path": n.FilePath,
		"signature": n.Signature,
		"span": map[string]int{
			"start_line": n.Span.StartLine,
			"end_line":   n.Span.EndLine,
		},
	}
}

func nodesToJSON(nodes []ast.Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeToJSON(n))
	}
	return out
}

func inheritanceToJSON(info query.InheritanceInfo) map[string]any {
	return map[string]any{
		"class":              nodeToJSON(info.Class),
		"bases":              nodesToJSON(info.Bases),
		"subclasses":         nodesToJSON(info.Subclasses),
		"mixins":             info.Mixins,
		"metaclass":          info.Metaclass,
		"dynamic_attributes": info.DynamicAttributes,
		"mro":                nodesToJSON(info.MRO),
		"mro_consistent":     info.MROConsistent,
	}
}

func complexityToJSON(r analysis.ComplexityReport) map[string]any {
	return map[string]any{
		"symbol":               nodeToJSON(r.Node),
		"cyclomatic_complexity": r.CyclomaticComplexity,
		"nesting_depth":        r.NestingDepth,
		"outgoing_call_count":  r.OutgoingCallCount,
		"tags":                 r.Tags,
	}
}

func complexityReportsToJSON(reports []analysis.ComplexityReport) []map[string]any {
	out := make([]map[string]any, 0, len(reports))
	for _, r := range reports {
		out = append(out, complexityToJSON(r))
	}
	return out
}

func contentQuery(p searchContentParams) contentindex.Query {
	return contentindex.Query{
		Text:             p.Text,
		Regex:            p.Regex,
		CaseSensitive:    p.CaseSensitive,
		AllowedTypes:     p.AllowedTypes,
		IncludePatterns:  p.IncludePatterns,
		ExcludePatterns:  p.ExcludePatterns,
		MaxResults:       p.MaxResults,
		IncludeContext:   p.IncludeContext,
		ContextLineCount: p.ContextLines,
	}
}

// indexOptionsForReindex adapts bulkindex's batch defaults to the
// single-file case reindex_file handles.
func indexOptionsForReindex(repoID string) bulkindex.Options {
	opts := bulkindex.DefaultOptions()
	opts.BatchSize = 1
	opts.ParallelWorkers = 1
	opts.RepoID = repoID
	return opts
}

// --- repository_stats ---

func (s *Server) handleRepositoryStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	byKind := map[string]int{}
	byLanguage := map[string]int{}
	for _, n := range s.store.AllNodes() {
		byKind[n.Kind.String()]++
		byLanguage[n.Language]++
	}
	return jsonResult(map[string]any{
		"node_count":   s.store.NodeCount(),
		"edge_count":   s.store.EdgeCount(),
		"unresolved":   s.store.UnresolvedCount(),
		"by_kind":      byKind,
		"by_language":  byLanguage,
	})
}

// --- content_stats ---

func (s *Server) handleContentStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.content == nil {
		return errResult("content_stats", fmt.Errorf("content index is not configured"))
	}
	return jsonResult(s.content.ContentStats())
}

// --- find_files ---

type findFilesParams struct {
	Pattern string `json:"pattern"`
}

func (s *Server) handleFindFiles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[findFilesParams](req)
	if err != nil {
		return errResult("find_files", err)
	}
	if s.content == nil {
		return errResult("find_files", fmt.Errorf("content index is not configured"))
	}
	return jsonResult(map[string]any{"files": s.content.FindFiles(p.Pattern)})
}

// --- search_symbols ---

type searchSymbolsParams struct {
	Pattern      string   `json:"pattern"`
	Kinds        []string `json:"kinds"`
	Limit        int      `json:"limit"`
	InheritsFrom string   `json:"inherits_from"`
	HasMetaclass string   `json:"has_metaclass"`
	UsesMixin    string   `json:"uses_mixin"`
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[searchSymbolsParams](req)
	if err != nil {
		return errResult("search_symbols", err)
	}
	kinds := parseKinds(p.Kinds)
	filters := query.InheritanceFilters{InheritsFrom: p.InheritsFrom, HasMetaclass: p.HasMetaclass, UsesMixin: p.UsesMixin}

	result, err := s.cached("search_symbols", p.Pattern, p, func() (any, error) {
		var nodes []ast.Node
		var err error
		if filters.InheritsFrom == "" && filters.HasMetaclass == "" && filters.UsesMixin == "" {
			nodes, err = query.SearchSymbols(s.store, p.Pattern, kinds, p.Limit)
		} else {
			nodes, err = query.SearchSymbolsWithInheritance(s.store, p.Pattern, kinds, filters, p.Limit)
		}
		if err != nil {
			return nil, err
		}
		return nodesToJSON(nodes), nil
	})
	if err != nil {
		return errResult("search_symbols", err)
	}
	return jsonResult(map[string]any{"symbols": result})
}

// --- search_content ---

type searchContentParams struct {
	Text            string   `json:"text"`
	Regex           bool     `json:"regex"`
	CaseSensitive   bool     `json:"case_sensitive"`
	AllowedTypes    []string `json:"allowed_types"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
	MaxResults      int      `json:"max_results"`
	IncludeContext  bool     `json:"include_context"`
	ContextLines    int      `json:"context_lines"`
}

func (s *Server) handleSearchContent(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[searchContentParams](req)
	if err != nil {
		return errResult("search_content", err)
	}
	if s.content == nil {
		return errResult("search_content", fmt.Errorf("content index is not configured"))
	}

	result, err := s.cached("search_content", p.Text, p, func() (any, error) {
		matches, err := s.content.Search(contentQuery(p))
		if err != nil {
			return nil, err
		}
		return matches, nil
	})
	if err != nil {
		return errResult("search_content", err)
	}
	return jsonResult(map[string]any{"matches": result})
}

// --- explain_symbol ---

type nodeIDParams struct {
	NodeID string `json:"node_id"`
}

func (s *Server) handleExplainSymbol(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[nodeIDParams](req)
	if err != nil {
		return errResult("explain_symbol", err)
	}
	id, err := identity.ParseNodeId(p.NodeID)
	if err != nil {
		return errResult("explain_symbol", err)
	}
	n, ok := s.store.GetNode(id)
	if !ok {
		return errResult("explain_symbol", fmt.Errorf("no symbol with id %q", p.NodeID))
	}

	out := map[string]any{"symbol": nodeToJSON(n)}

	refs := query.FindReferences(s.store, id)
	refsJSON := make([]map[string]any, 0, len(refs))
	for _, r := range refs {
		refsJSON = append(refsJSON, map[string]any{
			"from": nodeToJSON(r.FromNode),
			"kind": r.Edge.Kind.String(),
		})
	}
	out["references"] = refsJSON

	if n.Kind == ast.KindClass || n.Kind == ast.KindInterface {
		if info, ok := query.GetInheritanceInfo(s.store, id); ok {
			out["inheritance"] = inheritanceToJSON(info)
		}
	}
	if n.Kind == ast.KindFunction || n.Kind == ast.KindMethod || n.Kind == ast.KindConstructor {
		if report, ok := analysis.ComputeComplexity(s.store, id); ok {
			out["complexity"] = complexityToJSON(report)
		}
	}
	return jsonResult(out)
}

// --- find_references ---

func (s *Server) handleFindReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[nodeIDParams](req)
	if err != nil {
		return errResult("find_references", err)
	}
	id, err := identity.ParseNodeId(p.NodeID)
	if err != nil {
		return errResult("find_references", err)
	}
	refs := query.FindReferences(s.store, id)
	out := make([]map[string]any, 0, len(refs))
	for _, r := range refs {
		out = append(out, map[string]any{
			"from": nodeToJSON(r.FromNode),
			"kind": r.Edge.Kind.String(),
		})
	}
	return jsonResult(map[string]any{"references": out})
}

// --- find_dependencies ---

type findDependenciesParams struct {
	NodeID string `json:"node_id"`
	Mode   string `json:"mode"`
}

func (s *Server) handleFindDependencies(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[findDependenciesParams](req)
	if err != nil {
		return errResult("find_dependencies", err)
	}
	id, err := identity.ParseNodeId(p.NodeID)
	if err != nil {
		return errResult("find_dependencies", err)
	}
	mode := query.DependencyDirect
	if p.Mode == "transitive" {
		mode = query.DependencyTransitive
	}

	result, err := s.cached("find_dependencies", p.NodeID, p, func() (any, error) {
		edges := query.FindDependencies(s.store, id, mode)
		out := make([]map[string]any, 0, len(edges))
		for _, e := range edges {
			target, ok := s.store.GetNode(e.Target)
			entry := map[string]any{"kind": e.Kind.String()}
			if ok {
				entry["target"] = nodeToJSON(target)
			}
			out = append(out, entry)
		}
		return out, nil
	})
	if err != nil {
		return errResult("find_dependencies", err)
	}
	return jsonResult(map[string]any{"dependencies": result})
}

// --- trace_inheritance ---

func (s *Server) handleTraceInheritance(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[nodeIDParams](req)
	if err != nil {
		return errResult("trace_inheritance", err)
	}
	id, err := identity.ParseNodeId(p.NodeID)
	if err != nil {
		return errResult("trace_inheritance", err)
	}

	result, err := s.cached("trace_inheritance", p.NodeID, p, func() (any, error) {
		info, ok := query.GetInheritanceInfo(s.store, id)
		if !ok {
			return nil, fmt.Errorf("no class with id %q", p.NodeID)
		}
		return inheritanceToJSON(info), nil
	})
	if err != nil {
		return errResult("trace_inheritance", err)
	}
	return jsonResult(result)
}

// --- detect_patterns ---

type detectPatternsParams struct {
	MinConfidence float64 `json:"min_confidence"`
}

func (s *Server) handleDetectPatterns(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[detectPatternsParams](req)
	if err != nil {
		return errResult("detect_patterns", err)
	}

	result, err := s.cached("detect_patterns", "", p, func() (any, error) {
		return analysis.DetectPatterns(s.store, p.MinConfidence), nil
	})
	if err != nil {
		return errResult("detect_patterns", err)
	}
	return jsonResult(map[string]any{"patterns": result})
}

// --- analyze_complexity ---

type analyzeComplexityParams struct {
	NodeID   string `json:"node_id"`
	FilePath string `json:"file_path"`
}

func (s *Server) handleAnalyzeComplexity(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[analyzeComplexityParams](req)
	if err != nil {
		return errResult("analyze_complexity", err)
	}
	if p.NodeID == "" && p.FilePath == "" {
		return errResult("analyze_complexity", fmt.Errorf("one of node_id or file_path is required"))
	}

	target := p.NodeID
	if target == "" {
		target = p.FilePath
	}
	result, err := s.cached("analyze_complexity", target, p, func() (any, error) {
		if p.FilePath != "" {
			return complexityReportsToJSON(analysis.ComputeComplexityForFile(s.store, p.FilePath)), nil
		}
		id, err := identity.ParseNodeId(p.NodeID)
		if err != nil {
			return nil, err
		}
		report, ok := analysis.ComputeComplexity(s.store, id)
		if !ok {
			return nil, fmt.Errorf("no callable symbol with id %q", p.NodeID)
		}
		return complexityToJSON(report), nil
	})
	if err != nil {
		return errResult("analyze_complexity", err)
	}
	return jsonResult(result)
}

// --- reindex_file ---

type reindexFileParams struct {
	Path string `json:"path"`
}

func (s *Server) handleReindexFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := unmarshalParams[reindexFileParams](req)
	if err != nil {
		return errResult("reindex_file", err)
	}
	if s.indexer == nil {
		return errResult("reindex_file", fmt.Errorf("incremental indexer is not configured"))
	}

	filePatch, err := s.indexer.IndexFile(ctx, s.root, classifyForReindex(p.Path), indexOptionsForReindex(s.repoID))
	if err != nil {
		return errResult("reindex_file", err)
	}
	s.store.Apply(filePatch)

	// Open Question decision #1 (SPEC_FULL.md §5): re-run resolver retry
	// after an incremental reindex so newly introduced/removed symbols
	// resolve immediately rather than waiting for the next bulk pass.
	// Applying an already-resolved patch again is a no-op: patch/node
	// identity is content-addressed, so a repeat Apply just re-upserts
	// the same ids.
	resolved := resolver.Resolve(s.store, s.repoID, "")
	s.store.Apply(resolved)

	return jsonResult(map[string]any{
		"success": true,
		"path":    p.Path,
	})
}

// --- session_status ---

func (s *Server) handleSessionStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sugg := s.sess.Suggest()
	return jsonResult(map[string]any{
		"stage":      s.sess.Stage(),
		"history":    s.sess.History(),
		"suggestion": sugg,
	})
}

// --- health_check ---

func (s *Server) handleHealthCheck(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := observability.Rollup(s.metrics.Snapshot(), s.breakers.States(), s.sandbox.Thresholds())
	return jsonResult(map[string]any{
		"status":  report.Status,
		"reasons": report.Reasons,
	})
}
