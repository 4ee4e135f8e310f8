package langadapter

import (
	"context"
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

func TestGoParserExtractsFunctionsMethodsTypesImportsAndCalls(t *testing.T) {
	p, err := NewGoParser()
	if err != nil {
		t.Fatalf("NewGoParser: %v", err)
	}
	if p.Language() != langparser.LanguageGo {
		t.Fatalf("Language() = %q, want %q", p.Language(), langparser.LanguageGo)
	}

	src := `package widget

import "fmt"

type Widget struct {
	Name string
}

type Greeter interface {
	Greet() string
}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

func (w *Widget) Greet() string {
	if w.Name == "" {
		return "hello"
	}
	return fmt.Sprintf("hello, %s", w.Name)
}
`
	res, err := p.Parse(context.Background(), langparser.ParseContext{
		RepoID: "repo", FilePath: "widget.go", Content: []byte(src),
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var gotFunc, gotMethod, gotStruct, gotInterface, gotImport, gotCall bool
	for _, n := range res.Nodes {
		switch {
		case n.Kind == ast.KindFunction && n.Name == "NewWidget":
			gotFunc = true
		case n.Kind == ast.KindMethod && n.Name == "Greet":
			gotMethod = true
			if _, ok := n.Metadata["branch_count"].(int); !ok {
				t.Errorf("method Greet missing branch_count metadata")
			}
			if _, ok := n.Metadata["nesting_depth"].(int); !ok {
				t.Errorf("method Greet missing nesting_depth metadata")
			}
		case n.Kind == ast.KindClass && n.Name == "Widget":
			gotStruct = true
		case n.Kind == ast.KindInterface && n.Name == "Greeter":
			gotInterface = true
		case n.Kind == ast.KindImport:
			gotImport = true
			if ref, _ := n.Metadata["reference"].(string); ref != "fmt" {
				t.Errorf("import reference = %q, want fmt", ref)
			}
		case n.Kind == ast.KindCall:
			gotCall = true
		}
	}
	for name, got := range map[string]bool{
		"function": gotFunc, "method": gotMethod, "struct-as-class": gotStruct,
		"interface": gotInterface, "import": gotImport, "call": gotCall,
	} {
		if !got {
			t.Errorf("expected to find a %s node", name)
		}
	}
}
