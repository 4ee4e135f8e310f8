package patch

import (
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/identity"
)

func TestPatchIsEmpty(t *testing.T) {
	p := New("r", "sha1")
	if !p.IsEmpty() {
		t.Fatalf("new patch should be empty")
	}
	p.AddNode(ast.NewNode("r", ast.KindClass, "Foo", "python", "a.py", identity.Span{}, "", nil))
	if p.IsEmpty() {
		t.Fatalf("patch with a node should not be empty")
	}
}

func TestEstimatedBytes(t *testing.T) {
	p := New("r", "sha1")
	for i := 0; i < 3; i++ {
		p.AddNode(ast.NewNode("r", ast.KindFunction, "f", "go", "a.go", identity.Span{}, "", nil))
	}
	p.AddEdge(ast.Edge{Kind: ast.EdgeCalls})
	if got, want := p.EstimatedBytes(), int64(3*200+50); got != want {
		t.Fatalf("EstimatedBytes() = %d, want %d", got, want)
	}
}
