package analysis

import (
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/identity"
	"github.com/codeprism-dev/codeprism/internal/patch"
)

func mkNode(kind ast.NodeKind, name, file string, metadata map[string]any) ast.Node {
	return ast.NewNode("repo", kind, name, "python", file, identity.Span{StartLine: 1, EndLine: 1}, "", metadata)
}

// mkNodeAt varies the span so otherwise-identical (kind, name, file)
// nodes don't collide onto the same content-addressed NodeId.
func mkNodeAt(kind ast.NodeKind, name, file string, line int) ast.Node {
	return ast.NewNode("repo", kind, name, "python", file, identity.Span{StartLine: line, EndLine: line}, "", nil)
}

func TestComputeComplexityUsesBranchCountWhenPresent(t *testing.T) {
	store := graphstore.New()
	fn := mkNode(ast.KindFunction, "handle", "a.py", map[string]any{"branch_count": 4})

	p := patch.New("repo", "sha1")
	p.AddNode(fn)
	store.Apply(p)

	r, ok := ComputeComplexity(store, fn.ID)
	if !ok {
		t.Fatal("expected a report for a Function node")
	}
	if r.CyclomaticComplexity != 5 {
		t.Fatalf("expected 1+branch_count=5, got %d", r.CyclomaticComplexity)
	}
}

func TestComputeComplexityFallsBackToCallFanOut(t *testing.T) {
	store := graphstore.New()
	fn := mkNode(ast.KindFunction, "handle", "a.py", nil)
	callee1 := mkNode(ast.KindFunction, "a", "b.py", nil)
	callee2 := mkNode(ast.KindFunction, "b", "c.py", nil)

	p := patch.New("repo", "sha1")
	p.AddNode(fn)
	p.AddNode(callee1)
	p.AddNode(callee2)
	p.AddEdge(ast.Edge{Source: fn.ID, Target: callee1.ID, Kind: ast.EdgeCalls})
	p.AddEdge(ast.Edge{Source: fn.ID, Target: callee2.ID, Kind: ast.EdgeCalls})
	store.Apply(p)

	r, ok := ComputeComplexity(store, fn.ID)
	if !ok {
		t.Fatal("expected a report")
	}
	if r.CyclomaticComplexity != 3 {
		t.Fatalf("expected 1+2 distinct calls=3, got %d", r.CyclomaticComplexity)
	}
	if r.OutgoingCallCount != 2 {
		t.Fatalf("expected 2 distinct call targets, got %d", r.OutgoingCallCount)
	}
}

func TestComputeComplexityRejectsNonCallableNode(t *testing.T) {
	store := graphstore.New()
	cls := mkNode(ast.KindClass, "Foo", "a.py", nil)
	p := patch.New("repo", "sha1")
	p.AddNode(cls)
	store.Apply(p)

	if _, ok := ComputeComplexity(store, cls.ID); ok {
		t.Fatal("expected ComputeComplexity to reject a Class node")
	}
}

func TestComputeComplexityTagsHighComplexity(t *testing.T) {
	store := graphstore.New()
	fn := mkNode(ast.KindFunction, "sprawling", "a.py", map[string]any{"branch_count": 20})
	p := patch.New("repo", "sha1")
	p.AddNode(fn)
	store.Apply(p)

	r, _ := ComputeComplexity(store, fn.ID)
	found := false
	for _, tag := range r.Tags {
		if tag == "HIGH_COMPLEXITY" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected HIGH_COMPLEXITY tag, got %+v", r.Tags)
	}
}

func TestComputeComplexityForFileAggregatesAllCallables(t *testing.T) {
	store := graphstore.New()
	fn1 := mkNode(ast.KindFunction, "a", "file.py", nil)
	fn2 := mkNode(ast.KindMethod, "b", "file.py", nil)
	other := mkNode(ast.KindFunction, "c", "other.py", nil)

	p := patch.New("repo", "sha1")
	p.AddNode(fn1)
	p.AddNode(fn2)
	p.AddNode(other)
	store.Apply(p)

	reports := ComputeComplexityForFile(store, "file.py")
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports for file.py, got %d", len(reports))
	}
}
