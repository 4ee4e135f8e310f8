package contentindex

import (
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
)

func chunk(id, path, category, sub, content string) ast.ContentChunk {
	return ast.ContentChunk{
		ChunkID:     id,
		FilePath:    path,
		ContentType: ast.ContentType{Category: category, Sub: sub},
		Content:     []byte(content),
	}
}

// TestScenarioC grounds spec.md §8 Scenario C: content search for
// "TODO" with context and ranking.
func TestScenarioCSearchTODOWithContextAndRanking(t *testing.T) {
	ix := New()
	ix.Update("a.py", []ast.ContentChunk{
		chunk("a1", "a.py", "Comment", ast.CommentContextFunction, "line1\n# TODO fix this\nline3"),
	})
	ix.Update("readme.md", []ast.ContentChunk{
		chunk("r1", "readme.md", "Documentation", "markdown", "intro\nTODO write docs\nend"),
	})

	results, err := ix.Search(Query{Text: "TODO", IncludeContext: true, ContextLineCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(results), results)
	}
	// Documentation (weight 1.0) outranks Comment (0.8).
	if results[0].FilePath != "readme.md" {
		t.Fatalf("expected readme.md to rank first by content-type weight, got %+v", results)
	}
	if len(results[0].Before) != 1 || len(results[0].After) != 1 {
		t.Fatalf("expected 1 line of context on each side, got before=%v after=%v", results[0].Before, results[0].After)
	}
}

func TestTokenIntersectionRequiresAllTokens(t *testing.T) {
	ix := New()
	ix.Update("a.py", []ast.ContentChunk{chunk("a1", "a.py", "Code", "python", "def run_server(): pass")})
	ix.Update("b.py", []ast.ContentChunk{chunk("b1", "b.py", "Code", "python", "def run_client(): pass")})

	results, err := ix.Search(Query{Text: "run server"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].FilePath != "a.py" {
		t.Fatalf("expected only a.py to match both 'run' and 'server', got %+v", results)
	}
}

func TestRegexSearch(t *testing.T) {
	ix := New()
	ix.Update("a.go", []ast.ContentChunk{chunk("a1", "a.go", "Code", "go", "var x = fetchUser(42)\nvar y = fetchOrder(7)")})

	results, err := ix.Search(Query{Text: `fetch\w+\(`, Regex: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 regex matches, got %d", len(results))
	}
}

func TestUpdateReplacesPriorChunksAtSamePath(t *testing.T) {
	ix := New()
	ix.Update("a.py", []ast.ContentChunk{chunk("a1", "a.py", "Code", "python", "needle here")})
	if ix.ChunkCount() != 1 {
		t.Fatalf("expected 1 chunk after first update")
	}

	ix.Update("a.py", []ast.ContentChunk{chunk("a2", "a.py", "Code", "python", "no match anymore")})
	if ix.ChunkCount() != 1 {
		t.Fatalf("expected still 1 chunk after replace-update, got %d", ix.ChunkCount())
	}

	results, err := ix.Search(Query{Text: "needle"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected the old chunk's content to be gone after update, got %+v", results)
	}
}

func TestUpdateListenerNotified(t *testing.T) {
	ix := New()
	var notified []string
	ix.OnUpdate(func(path string) { notified = append(notified, path) })

	ix.Update("a.py", []ast.ContentChunk{chunk("a1", "a.py", "Code", "python", "x")})
	ix.Remove("a.py")

	if len(notified) != 2 || notified[0] != "a.py" || notified[1] != "a.py" {
		t.Fatalf("expected 2 notifications for a.py, got %+v", notified)
	}
}

func TestFindFilesByExtensionAndComponent(t *testing.T) {
	ix := New()
	ix.Update("internal/server/handler.go", []ast.ContentChunk{
		chunk("h1", "internal/server/handler.go", "Code", "go", "package server"),
	})

	byExt := ix.FindFiles(".go")
	if len(byExt) != 1 {
		t.Fatalf("expected 1 file matching .go, got %+v", byExt)
	}
	byDir := ix.FindFiles("server")
	if len(byDir) != 1 {
		t.Fatalf("expected 1 file matching path component 'server', got %+v", byDir)
	}
}

func TestContentStatsAggregation(t *testing.T) {
	ix := New()
	ix.Update("a.py", []ast.ContentChunk{chunk("a1", "a.py", "Code", "python", "x")})
	ix.Update("b.md", []ast.ContentChunk{chunk("b1", "b.md", "Documentation", "markdown", "y")})

	stats := ix.ContentStats()
	if stats.TotalChunks != 2 || stats.TotalFiles != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ChunksByType["Code"] != 1 || stats.ChunksByType["Documentation"] != 1 {
		t.Fatalf("unexpected per-type counts: %+v", stats.ChunksByType)
	}
}
