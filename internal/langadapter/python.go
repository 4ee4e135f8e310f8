package langadapter

import (
	"context"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

// pythonQuery mirrors the teacher's setupPython (parser_language_setup.go):
// methods nested in a class body are captured separately from
// module-level functions so the two land in different universal kinds.
const pythonQuery = `
(class_definition
    body: (block
        (function_definition name: (identifier) @method.name))) @method
(function_definition name: (identifier) @function.name) @function
(class_definition name: (identifier) @class.name) @class
(import_statement) @import
(import_from_statement) @import
(call function: (_) @call.target) @call
`

type pythonParser struct {
	lang  *tree_sitter.Language
	query *tree_sitter.Query
}

func NewPythonParser() (langparser.Parser, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	q, err := compileQuery(lang, pythonQuery)
	if err != nil {
		return nil, err
	}
	return &pythonParser{lang: lang, query: q}, nil
}

func (p *pythonParser) Language() langparser.Language { return langparser.LanguagePython }

func (p *pythonParser) Parse(ctx context.Context, pc langparser.ParseContext) (langparser.ParseResult, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return langparser.ParseResult{}, parseFailure("langadapter.python.Parse", pc.FilePath, err)
	}

	tree := parser.Parse(pc.Content, nil)
	if tree == nil {
		return langparser.ParseResult{}, parseFailure("langadapter.python.Parse", pc.FilePath, nil)
	}
	defer tree.Close()

	var nodes []ast.Node
	root := tree.RootNode()

	eachMatch(p.query, *root, pc.Content, func(caps []capture) {
		for i := range caps {
			c := caps[i]
			switch c.name {
			case "function":
				name := "function"
				if n := byName(caps, "function.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				branches, depth := branchMetrics(&c.node)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindFunction, name, "python", pc.FilePath, &c.node,
					map[string]any{"branch_count": branches, "nesting_depth": depth}))

			case "method":
				name := "method"
				if n := byName(caps, "method.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				branches, depth := branchMetrics(&c.node)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindMethod, name, "python", pc.FilePath, &c.node,
					map[string]any{"branch_count": branches, "nesting_depth": depth}))

			case "class":
				name := "class"
				if n := byName(caps, "class.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				meta := pythonClassMetadata(&c.node, pc.Content)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindClass, name, "python", pc.FilePath, &c.node, meta))

			case "import":
				ref := pythonImportReference(&c.node, pc.Content)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindImport, ref, "python", pc.FilePath, &c.node,
					map[string]any{"reference": ref}))

			case "call":
				callee := ""
				if n := byName(caps, "call.target"); n != nil {
					callee = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindCall, callee, "python", pc.FilePath, &c.node,
					map[string]any{"callee": lastSegment(callee)}))
			}
		}
	})

	return langparser.ParseResult{Tree: nil, Nodes: nodes}, nil
}

// pythonImportReference pulls the dotted module path out of an
// import_statement/import_from_statement node, since the grammar
// nests it under a dotted_name/aliased_import child rather than
// exposing it as a top-level field.
func pythonImportReference(n *tree_sitter.Node, content []byte) string {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			return textOf(child, content)
		case "aliased_import":
			if dotted := child.Child(0); dotted != nil {
				return textOf(dotted, content)
			}
		}
	}
	return textOf(n, content)
}

// pythonClassMetadata inspects a class_definition's superclasses
// argument_list, splitting it into the first positional base, any
// remaining positional bases (surfaced as "mixins", per the common
// mixin-via-multiple-inheritance idiom), and a metaclass= keyword
// argument, matching the Metadata contract
// query.GetInheritanceInfo reads ("mixins", "metaclass",
// "dynamic_attributes").
func pythonClassMetadata(n *tree_sitter.Node, content []byte) map[string]any {
	meta := map[string]any{}
	var bases []string
	var mixins []string

	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.Kind() != "argument_list" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			arg := child.Child(j)
			if arg == nil {
				continue
			}
			switch arg.Kind() {
			case "identifier", "attribute":
				bases = append(bases, textOf(arg, content))
			case "keyword_argument":
				if arg.ChildCount() >= 2 {
					if keyName := arg.Child(0); keyName != nil && textOf(keyName, content) == "metaclass" {
						if val := arg.Child(arg.ChildCount() - 1); val != nil {
							meta["metaclass"] = textOf(val, content)
						}
					}
				}
			}
		}
	}
	if len(bases) > 1 {
		mixins = bases[1:]
	}
	if len(bases) > 0 {
		meta["base_names"] = bases
	}
	if len(mixins) > 0 {
		meta["mixins"] = mixins
	}
	meta["dynamic_attributes"] = pythonDynamicAttributes(n, content)
	return meta
}

// pythonDynamicAttributes scans a class body for setattr(self, ...)
// calls, the idiom SPEC_FULL.md's trace_inheritance wiring describes
// as "dynamic-attribute detection": attributes a class can gain at
// runtime that static field extraction would never see.
func pythonDynamicAttributes(n *tree_sitter.Node, content []byte) []string {
	var attrs []string
	var walk func(*tree_sitter.Node)
	walk = func(cur *tree_sitter.Node) {
		if cur.Kind() == "call" {
			if fn := cur.Child(0); fn != nil && textOf(fn, content) == "setattr" {
				attrs = append(attrs, "<setattr>")
			}
		}
		for i := uint(0); i < cur.ChildCount(); i++ {
			if child := cur.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(n)
	return attrs
}
