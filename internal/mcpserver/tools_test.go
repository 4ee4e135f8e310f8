package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/codeprism-dev/codeprism/internal/anacache"
	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/contentindex"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/identity"
	"github.com/codeprism-dev/codeprism/internal/patch"
	"github.com/codeprism-dev/codeprism/internal/session"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func mkNode(kind ast.NodeKind, name, file string, line int) ast.Node {
	span := identity.Span{StartLine: line, EndLine: line}
	return ast.NewNode("repo1", kind, name, "go", file, span, "", nil)
}

func newTestServer(t *testing.T) (*Server, *graphstore.Store) {
	t.Helper()
	store := graphstore.New()
	content := contentindex.New()
	s := New(Config{Store: store, Content: content, Cache: anacache.New(), RepoID: "repo1", Root: "."})
	return s, store
}

func callTool(ctx context.Context, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), params any) (map[string]any, bool) {
	var raw json.RawMessage
	if params != nil {
		b, _ := json.Marshal(params)
		raw = b
	}
	res, err := handler(ctx, &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	if err != nil {
		panic(err)
	}
	text := res.Content[0].(*mcp.TextContent).Text
	var out map[string]any
	if jerr := json.Unmarshal([]byte(text), &out); jerr != nil {
		panic(jerr)
	}
	return out, res.IsError
}

func TestRepositoryStatsCountsNodesByKindAndLanguage(t *testing.T) {
	s, store := newTestServer(t)
	p := patch.New("repo1", "")
	p.NodesAdd = append(p.NodesAdd,
		mkNode(ast.KindClass, "Widget", "a.go", 1),
		mkNode(ast.KindFunction, "run", "a.go", 5),
	)
	store.Apply(p)

	out, isErr := callTool(context.Background(), s.handleRepositoryStats, nil)
	if isErr {
		t.Fatalf("unexpected error result: %+v", out)
	}
	if int(out["node_count"].(float64)) != 2 {
		t.Fatalf("expected node_count 2, got %+v", out)
	}
	byKind := out["by_kind"].(map[string]any)
	if int(byKind["class"].(float64)) != 1 || int(byKind["function"].(float64)) != 1 {
		t.Fatalf("expected one class and one function, got %+v", byKind)
	}
}

func TestSearchSymbolsFindsByPattern(t *testing.T) {
	s, store := newTestServer(t)
	p := patch.New("repo1", "")
	p.NodesAdd = append(p.NodesAdd, mkNode(ast.KindClass, "UserService", "svc.go", 1))
	store.Apply(p)

	out, isErr := callTool(context.Background(), s.handleSearchSymbols, searchSymbolsParams{Pattern: "UserService"})
	if isErr {
		t.Fatalf("unexpected error result: %+v", out)
	}
	symbols := out["symbols"].([]any)
	if len(symbols) != 1 {
		t.Fatalf("expected 1 symbol, got %+v", symbols)
	}
}

func TestSearchSymbolsInvalidRegexIsSoftFailure(t *testing.T) {
	s, _ := newTestServer(t)
	out, isErr := callTool(context.Background(), s.handleSearchSymbols, searchSymbolsParams{Pattern: "("})
	if !isErr {
		t.Fatalf("expected soft-fail IsError result, got %+v", out)
	}
	if out["success"] != false {
		t.Fatalf("expected success:false in error body, got %+v", out)
	}
}

func TestExplainSymbolReportsReferencesAndComplexity(t *testing.T) {
	s, store := newTestServer(t)
	fn := mkNode(ast.KindFunction, "run", "a.go", 1)
	caller := mkNode(ast.KindFunction, "main", "a.go", 10)
	p := patch.New("repo1", "")
	p.NodesAdd = append(p.NodesAdd, fn, caller)
	p.EdgesAdd = append(p.EdgesAdd, ast.Edge{Source: caller.ID, Target: fn.ID, Kind: ast.EdgeCalls})
	store.Apply(p)

	out, isErr := callTool(context.Background(), s.handleExplainSymbol, nodeIDParams{NodeID: fn.ID.String()})
	if isErr {
		t.Fatalf("unexpected error result: %+v", out)
	}
	refs := out["references"].([]any)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %+v", refs)
	}
	if _, ok := out["complexity"]; !ok {
		t.Fatalf("expected complexity to be present for a function, got %+v", out)
	}
}

func TestExplainSymbolUnknownNodeIdIsSoftFailure(t *testing.T) {
	s, _ := newTestServer(t)
	id := mkNode(ast.KindFunction, "ghost", "a.go", 1).ID
	out, isErr := callTool(context.Background(), s.handleExplainSymbol, nodeIDParams{NodeID: id.String()})
	if !isErr {
		t.Fatalf("expected soft-fail for unknown node id, got %+v", out)
	}
}

func TestExplainSymbolMalformedNodeIdIsSoftFailure(t *testing.T) {
	s, _ := newTestServer(t)
	out, isErr := callTool(context.Background(), s.handleExplainSymbol, nodeIDParams{NodeID: "not-hex"})
	if !isErr {
		t.Fatalf("expected soft-fail for malformed node id, got %+v", out)
	}
}

func TestFindDependenciesTransitiveFollowsChain(t *testing.T) {
	s, store := newTestServer(t)
	a := mkNode(ast.KindFunction, "a", "f.go", 1)
	b := mkNode(ast.KindFunction, "b", "f.go", 5)
	c := mkNode(ast.KindFunction, "c", "f.go", 9)
	p := patch.New("repo1", "")
	p.NodesAdd = append(p.NodesAdd, a, b, c)
	p.EdgesAdd = append(p.EdgesAdd,
		ast.Edge{Source: a.ID, Target: b.ID, Kind: ast.EdgeCalls},
		ast.Edge{Source: b.ID, Target: c.ID, Kind: ast.EdgeCalls},
	)
	store.Apply(p)

	out, isErr := callTool(context.Background(), s.handleFindDependencies, findDependenciesParams{NodeID: a.ID.String(), Mode: "transitive"})
	if isErr {
		t.Fatalf("unexpected error: %+v", out)
	}
	deps := out["dependencies"].([]any)
	if len(deps) != 2 {
		t.Fatalf("expected 2 transitive dependency edges, got %+v", deps)
	}
}

func TestDetectPatternsRespectsMinConfidenceParam(t *testing.T) {
	s, store := newTestServer(t)
	class := mkNode(ast.KindClass, "Everything", "god.go", 1)
	p := patch.New("repo1", "")
	p.NodesAdd = append(p.NodesAdd, class)
	for i := 0; i < 41; i++ {
		field := mkNode(ast.KindField, "f", "god.go", i+2)
		p.NodesAdd = append(p.NodesAdd, field)
		p.EdgesAdd = append(p.EdgesAdd, ast.Edge{Source: class.ID, Target: field.ID, Kind: ast.EdgeContains})
	}
	store.Apply(p)

	loose, isErr := callTool(context.Background(), s.handleDetectPatterns, detectPatternsParams{MinConfidence: 0.1})
	if isErr {
		t.Fatalf("unexpected error: %+v", loose)
	}
	strict, isErr := callTool(context.Background(), s.handleDetectPatterns, detectPatternsParams{MinConfidence: 0.99})
	if isErr {
		t.Fatalf("unexpected error: %+v", strict)
	}
	loosePatterns := loose["patterns"].([]any)
	strictPatterns := strict["patterns"].([]any)
	if len(loosePatterns) == 0 {
		t.Fatalf("expected at least one pattern at low confidence threshold")
	}
	if len(strictPatterns) >= len(loosePatterns) {
		t.Fatalf("expected a stricter threshold to report fewer patterns: loose=%d strict=%d", len(loosePatterns), len(strictPatterns))
	}
}

func TestAnalyzeComplexityRequiresNodeIdOrFilePath(t *testing.T) {
	s, _ := newTestServer(t)
	out, isErr := callTool(context.Background(), s.handleAnalyzeComplexity, analyzeComplexityParams{})
	if !isErr {
		t.Fatalf("expected soft-fail when neither node_id nor file_path is given, got %+v", out)
	}
	if !strings.Contains(out["error"].(string), "node_id") {
		t.Fatalf("expected error message to mention node_id, got %+v", out)
	}
}

func TestSearchContentRequiresConfiguredIndex(t *testing.T) {
	store := graphstore.New()
	s := New(Config{Store: store, RepoID: "repo1", Root: "."})
	out, isErr := callTool(context.Background(), s.handleSearchContent, searchContentParams{Text: "TODO"})
	if !isErr {
		t.Fatalf("expected soft-fail when content index is unconfigured, got %+v", out)
	}
}

func TestSearchSymbolsResultsAreCached(t *testing.T) {
	s, store := newTestServer(t)
	p := patch.New("repo1", "")
	p.NodesAdd = append(p.NodesAdd, mkNode(ast.KindClass, "Cached", "c.go", 1))
	store.Apply(p)

	params := searchSymbolsParams{Pattern: "Cached"}
	first, isErr := callTool(context.Background(), s.handleSearchSymbols, params)
	if isErr {
		t.Fatalf("unexpected error: %+v", first)
	}

	// Mutate the store after the first call; a cache hit should still
	// return the original (now stale) result rather than recomputing.
	p2 := patch.New("repo1", "")
	p2.NodesAdd = append(p2.NodesAdd, mkNode(ast.KindClass, "Cached", "d.go", 1))
	store.Apply(p2)

	second, isErr := callTool(context.Background(), s.handleSearchSymbols, params)
	if isErr {
		t.Fatalf("unexpected error: %+v", second)
	}
	firstSymbols := first["symbols"].([]any)
	secondSymbols := second["symbols"].([]any)
	if len(firstSymbols) != len(secondSymbols) {
		t.Fatalf("expected cached result to be stable across the store mutation: first=%d second=%d", len(firstSymbols), len(secondSymbols))
	}
}

func TestSessionStatusReportsStageAndHistory(t *testing.T) {
	s, _ := newTestServer(t)

	out, isErr := callTool(context.Background(), s.instrument("repository_stats", s.handleRepositoryStats), nil)
	if isErr {
		t.Fatalf("unexpected error: %+v", out)
	}

	status, isErr := callTool(context.Background(), s.instrument("session_status", s.handleSessionStatus), nil)
	if isErr {
		t.Fatalf("unexpected error: %+v", status)
	}
	if status["stage"] != string(session.StageDiscovery) {
		t.Fatalf("expected discovery stage, got %+v", status)
	}
	history := status["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("expected one recorded invocation from the instrumented call above, got %+v", history)
	}
	first := history[0].(map[string]any)
	if first["Tool"] != "repository_stats" || first["Success"] != true {
		t.Fatalf("expected repository_stats success recorded, got %+v", first)
	}
}

func TestHealthCheckReportsHealthyWithNoTraffic(t *testing.T) {
	s, _ := newTestServer(t)
	out, isErr := callTool(context.Background(), s.handleHealthCheck, nil)
	if isErr {
		t.Fatalf("unexpected error: %+v", out)
	}
	if out["status"] != "healthy" {
		t.Fatalf("expected healthy status with no recorded traffic, got %+v", out)
	}
}

func TestInstrumentRecordsFailureOnSoftFailResult(t *testing.T) {
	s, _ := newTestServer(t)
	wrapped := s.instrument("search_symbols", s.handleSearchSymbols)

	_, isErr := callTool(context.Background(), wrapped, searchSymbolsParams{Pattern: "("})
	if !isErr {
		t.Fatalf("expected the soft-fail search_symbols call to still surface as an error result")
	}

	snap := s.metrics.Snapshot()
	op, ok := snap.Operations["search_symbols"]
	if !ok || op.Failure != 1 {
		t.Fatalf("expected instrument to record one failure for search_symbols, got %+v", snap.Operations)
	}
}
