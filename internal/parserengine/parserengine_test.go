package parserengine

import (
	"context"
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/identity"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

type stubParser struct {
	lang langparser.Language
	node ast.Node
}

func (s stubParser) Language() langparser.Language { return s.lang }
func (s stubParser) Parse(ctx context.Context, pc langparser.ParseContext) (langparser.ParseResult, error) {
	return langparser.ParseResult{Nodes: []ast.Node{s.node}}, nil
}

func TestEngineParseDispatchesToRegisteredAdapter(t *testing.T) {
	reg := langparser.NewRegistry()
	want := ast.NewNode("repo", ast.KindFunction, "helper", "go", "x.go", identity.Span{StartLine: 1, EndLine: 1}, "", nil)
	reg.Register(stubParser{lang: langparser.LanguageGo, node: want})

	engine := New(reg, nil)
	res, err := engine.Parse(context.Background(), langparser.LanguageGo, langparser.ParseContext{FilePath: "x.go"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Nodes) != 1 || res.Nodes[0].Name != "helper" {
		t.Fatalf("expected the stub adapter's node to come back, got %v", res.Nodes)
	}
}

func TestEngineParseFailsSoftWhenNoParserRegistered(t *testing.T) {
	reg := langparser.NewRegistry()
	engine := New(reg, nil)

	_, err := engine.Parse(context.Background(), langparser.LanguagePython, langparser.ParseContext{FilePath: "x.py"})
	if err == nil {
		t.Fatalf("expected ErrNoParser for an unregistered language")
	}
	var noParser *ErrNoParser
	if _, ok := err.(*ErrNoParser); !ok {
		t.Fatalf("expected *ErrNoParser, got %T (%v)", err, noParser)
	}
}
