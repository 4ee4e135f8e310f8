package langadapter

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

// goQuery captures the same symbol shapes the teacher's setupGo does
// (parser_language_setup.go): top-level funcs, methods (by receiver),
// named types, func literals, and import paths.
const goQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_declaration
    receiver: (parameter_list) @method.receiver
    name: (field_identifier) @method.name) @method
(type_declaration
    (type_spec name: (type_identifier) @type.name)) @type
(func_literal) @function
(import_spec path: (interpreted_string_literal) @import.path) @import
(call_expression function: (_) @call.target) @call
`

type goParser struct {
	lang  *tree_sitter.Language
	query *tree_sitter.Query
}

// NewGoParser builds the Go language adapter, compiling its query once
// up front so Parse only has to pay for a fresh tree-sitter.Parser per
// call (tree_sitter.Parser is not safe to share across the concurrent
// goroutines bulkindex.Indexer.IndexRepo fans a repo's files out to).
func NewGoParser() (langparser.Parser, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
	q, err := compileQuery(lang, goQuery)
	if err != nil {
		return nil, err
	}
	return &goParser{lang: lang, query: q}, nil
}

func (p *goParser) Language() langparser.Language { return langparser.LanguageGo }

func (p *goParser) Parse(ctx context.Context, pc langparser.ParseContext) (langparser.ParseResult, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return langparser.ParseResult{}, parseFailure("langadapter.go.Parse", pc.FilePath, err)
	}

	tree := parser.Parse(pc.Content, nil)
	if tree == nil {
		return langparser.ParseResult{}, parseFailure("langadapter.go.Parse", pc.FilePath, nil)
	}
	defer tree.Close()

	root := tree.RootNode()
	var nodes []ast.Node
	var edges []ast.Edge

	packageName := goPackageName(root, pc.Content)
	if packageName != "" {
		nodes = append(nodes, ast.NewNode(pc.RepoID, ast.KindPackage, packageName, "go", pc.FilePath,
			spanOf(root), "", map[string]any{"ts_kind": root.Kind()}))
	}

	eachMatch(p.query, *root, pc.Content, func(caps []capture) {
		for i := range caps {
			c := caps[i]
			switch c.name {
			case "function":
				name := "func"
				if n := byName(caps, "function.name"); n != nil {
					name = textOf(n, pc.Content)
				} else if c.node.Kind() == "func_literal" {
					name = "func_literal"
				}
				branches, depth := branchMetrics(&c.node)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindFunction, name, "go", pc.FilePath, &c.node,
					map[string]any{"branch_count": branches, "nesting_depth": depth, "package": packageName}))

			case "method":
				name := "method"
				if n := byName(caps, "method.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				receiver := ""
				if n := byName(caps, "method.receiver"); n != nil {
					receiver = textOf(n, pc.Content)
				}
				branches, depth := branchMetrics(&c.node)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindMethod, name, "go", pc.FilePath, &c.node,
					map[string]any{"receiver": receiver, "branch_count": branches, "nesting_depth": depth, "package": packageName}))

			case "type":
				name := "type"
				if n := byName(caps, "type.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, classifyGoType(&c.node, pc.Content), name, "go", pc.FilePath, &c.node, nil))

			case "import":
				path := ""
				if n := byName(caps, "import.path"); n != nil {
					path = trimQuotes(textOf(n, pc.Content))
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindImport, path, "go", pc.FilePath, &c.node,
					map[string]any{"reference": path}))

			case "call":
				callee := ""
				if n := byName(caps, "call.target"); n != nil {
					callee = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindCall, callee, "go", pc.FilePath, &c.node,
					map[string]any{"callee": lastSegment(callee), "package": packageName}))
			}
		}
	})

	return langparser.ParseResult{Tree: nil, Nodes: nodes, Edges: edges}, nil
}

func goPackageName(root *tree_sitter.Node, content []byte) string {
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "package_clause" {
			for j := uint(0); j < child.ChildCount(); j++ {
				id := child.Child(j)
				if id != nil && id.Kind() == "package_identifier" {
					return textOf(id, content)
				}
			}
		}
	}
	return ""
}

// classifyGoType distinguishes struct/interface/alias type_specs from a
// plain type_declaration capture by walking its children, since
// tree-sitter-go surfaces all three as the same type_spec node shape
// and the universal taxonomy wants them split (spec.md §3: Class and
// Interface are distinct kinds).
func classifyGoType(n *tree_sitter.Node, content []byte) ast.NodeKind {
	var walk func(*tree_sitter.Node) ast.NodeKind
	walk = func(cur *tree_sitter.Node) ast.NodeKind {
		for i := uint(0); i < cur.ChildCount(); i++ {
			child := cur.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "struct_type":
				return ast.KindClass
			case "interface_type":
				return ast.KindInterface
			}
			if k := walk(child); k != ast.KindUnknown {
				return k
			}
		}
		return ast.KindUnknown
	}
	if k := walk(n); k != ast.KindUnknown {
		return k
	}
	return ast.KindClass
}

// lastSegment strips a selector/member-access prefix from a callee
// expression's source text (e.g. "fmt.Println" -> "Println",
// "client.conn.Close" -> "Close"), matching the unqualified-name keys
// resolver.Resolve's byName index looks callees up by.
func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
