package langadapter

import (
	"context"
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

func TestPythonParserExtractsClassesMethodsImportsAndCalls(t *testing.T) {
	p, err := NewPythonParser()
	if err != nil {
		t.Fatalf("NewPythonParser: %v", err)
	}
	if p.Language() != langparser.LanguagePython {
		t.Fatalf("Language() = %q, want %q", p.Language(), langparser.LanguagePython)
	}

	src := `from animal import Animal

def helper():
    return 1

class Dog(Animal, Loyal, metaclass=DogMeta):
    def bark(self):
        if self.loud:
            return "WOOF"
        return "woof"

    def grow_tail(self):
        setattr(self, "tail", True)

helper()
`
	res, err := p.Parse(context.Background(), langparser.ParseContext{
		RepoID: "repo", FilePath: "dog.py", Content: []byte(src),
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var class *ast.Node
	var gotFunc, gotMethod, gotImport, gotCall bool
	for i := range res.Nodes {
		n := &res.Nodes[i]
		switch {
		case n.Kind == ast.KindClass && n.Name == "Dog":
			class = n
		case n.Kind == ast.KindFunction && n.Name == "helper":
			gotFunc = true
		case n.Kind == ast.KindMethod && n.Name == "bark":
			gotMethod = true
		case n.Kind == ast.KindImport:
			gotImport = true
			if ref, _ := n.Metadata["reference"].(string); ref != "animal" {
				t.Errorf("import reference = %q, want animal", ref)
			}
		case n.Kind == ast.KindCall && n.Name == "helper":
			gotCall = true
		}
	}
	if class == nil {
		t.Fatalf("expected a Dog class node")
	}
	bases, _ := class.Metadata["base_names"].([]string)
	if len(bases) != 2 || bases[0] != "Animal" || bases[1] != "Loyal" {
		t.Errorf("base_names = %v, want [Animal Loyal]", bases)
	}
	mixins, _ := class.Metadata["mixins"].([]string)
	if len(mixins) != 1 || mixins[0] != "Loyal" {
		t.Errorf("mixins = %v, want [Loyal]", mixins)
	}
	if meta, _ := class.Metadata["metaclass"].(string); meta != "DogMeta" {
		t.Errorf("metaclass = %q, want DogMeta", meta)
	}
	if attrs, _ := class.Metadata["dynamic_attributes"].([]string); len(attrs) == 0 {
		t.Errorf("expected dynamic_attributes to be non-empty for grow_tail's setattr call")
	}

	for name, got := range map[string]bool{"function": gotFunc, "method": gotMethod, "import": gotImport, "call": gotCall} {
		if !got {
			t.Errorf("expected to find a %s node", name)
		}
	}
}
