package langadapter

import (
	"context"
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

func TestJavaScriptParserExtractsClassesAndDynamicAttributes(t *testing.T) {
	p, err := NewJavaScriptParser()
	if err != nil {
		t.Fatalf("NewJavaScriptParser: %v", err)
	}
	if p.Language() != langparser.LanguageJavaScript {
		t.Fatalf("Language() = %q, want %q", p.Language(), langparser.LanguageJavaScript)
	}

	src := `import fs from "fs";

function helper() {
  return 1;
}

class Animal {
  speak() {
    return "...";
  }
}

class Dog extends Animal {
  constructor() {
    this.name = "Rex";
  }
  bark() {
    return helper();
  }
}
`
	res, err := p.Parse(context.Background(), langparser.ParseContext{
		RepoID: "repo", FilePath: "dog.js", Content: []byte(src),
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var dog *ast.Node
	var gotFunc, gotImport, gotCall bool
	for i := range res.Nodes {
		n := &res.Nodes[i]
		switch {
		case n.Kind == ast.KindClass && n.Name == "Dog":
			dog = n
		case n.Kind == ast.KindFunction && n.Name == "helper":
			gotFunc = true
		case n.Kind == ast.KindImport:
			gotImport = true
		case n.Kind == ast.KindCall:
			gotCall = true
		}
	}
	if dog == nil {
		t.Fatalf("expected a Dog class node")
	}
	bases, _ := dog.Metadata["base_names"].([]string)
	if len(bases) != 1 || bases[0] != "Animal" {
		t.Errorf("base_names = %v, want [Animal]", bases)
	}
	if attrs, _ := dog.Metadata["dynamic_attributes"].([]string); len(attrs) == 0 {
		t.Errorf("expected dynamic_attributes populated from this.name assignment")
	}
	for name, got := range map[string]bool{"function": gotFunc, "import": gotImport, "call": gotCall} {
		if !got {
			t.Errorf("expected to find a %s node", name)
		}
	}
}

func TestTypeScriptParserExtractsInterfacesAndEnums(t *testing.T) {
	p, err := NewTypeScriptParser()
	if err != nil {
		t.Fatalf("NewTypeScriptParser: %v", err)
	}
	if p.Language() != langparser.LanguageTypeScript {
		t.Fatalf("Language() = %q, want %q", p.Language(), langparser.LanguageTypeScript)
	}

	src := `interface Shape {
  area(): number;
}

enum Color {
  Red,
  Green,
}
`
	res, err := p.Parse(context.Background(), langparser.ParseContext{
		RepoID: "repo", FilePath: "shape.ts", Content: []byte(src),
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var gotInterface, gotEnum bool
	for _, n := range res.Nodes {
		switch {
		case n.Kind == ast.KindInterface && n.Name == "Shape":
			gotInterface = true
		case n.Kind == ast.KindEnum && n.Name == "Color":
			gotEnum = true
		}
	}
	if !gotInterface {
		t.Errorf("expected a Shape interface node")
	}
	if !gotEnum {
		t.Errorf("expected a Color enum node")
	}
}
