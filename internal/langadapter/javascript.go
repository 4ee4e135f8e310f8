package langadapter

import (
	"context"

	gofastast "github.com/t14raptor/go-fast/ast"
	gofastparser "github.com/t14raptor/go-fast/parser"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

// javascriptQuery mirrors the teacher's setupJavaScript (parser_language_setup.go),
// plus a call capture and a class_heritage capture so base classes can
// be surfaced as "base_names" metadata the way pythonClassMetadata does.
const javascriptQuery = `
(function_declaration name: (identifier) @function.name) @function
(generator_function_declaration name: (identifier) @function.name) @function
(variable_declarator
    name: (identifier) @function.name
    value: [(arrow_function) (function_expression) (generator_function)]) @function
(method_definition name: (property_identifier) @method.name) @method
(class_declaration name: (identifier) @class.name) @class
(class_declaration (class_heritage (identifier) @class.super)) @class
(import_statement source: (string) @import.source) @import
(call_expression function: (_) @call.target) @call
`

// typescriptQuery additionally captures interfaces, type aliases, and
// enums, matching the teacher's setupTypeScript.
const typescriptQuery = javascriptQuery + `
(interface_declaration name: (type_identifier) @interface.name) @interface
(type_alias_declaration name: (type_identifier) @type.name) @type
(enum_declaration name: (identifier) @enum.name) @enum
`

type jsFamilyParser struct {
	lang     *tree_sitter.Language
	query    *tree_sitter.Query
	language langparser.Language
	tag      string // "javascript" or "typescript", used as Node.Language
}

func NewJavaScriptParser() (langparser.Parser, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	q, err := compileQuery(lang, javascriptQuery)
	if err != nil {
		return nil, err
	}
	return &jsFamilyParser{lang: lang, query: q, language: langparser.LanguageJavaScript, tag: "javascript"}, nil
}

func NewTypeScriptParser() (langparser.Parser, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	q, err := compileQuery(lang, typescriptQuery)
	if err != nil {
		return nil, err
	}
	return &jsFamilyParser{lang: lang, query: q, language: langparser.LanguageTypeScript, tag: "typescript"}, nil
}

func (p *jsFamilyParser) Language() langparser.Language { return p.language }

func (p *jsFamilyParser) Parse(ctx context.Context, pc langparser.ParseContext) (langparser.ParseResult, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return langparser.ParseResult{}, parseFailure("langadapter."+p.tag+".Parse", pc.FilePath, err)
	}

	tree := parser.Parse(pc.Content, nil)
	if tree == nil {
		return langparser.ParseResult{}, parseFailure("langadapter."+p.tag+".Parse", pc.FilePath, nil)
	}
	defer tree.Close()

	// go-fast only understands plain ES5/ES6 JavaScript (no TypeScript
	// syntax, no JSX) - exactly the teacher's javascript_gofast_analyzer.go
	// caveat. Failing to parse here just means the dynamic-attribute
	// pass below has nothing to add; the tree-sitter extraction still
	// runs regardless.
	dynByClass := dynamicAttributesByClass(pc.Content)

	root := tree.RootNode()
	var nodes []ast.Node
	classMeta := map[string]map[string]any{} // keyed by class node's start byte

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
				nodes = append(nodes, newNode(pc.RepoID, ast.KindFunction, name, p.tag, pc.FilePath, &c.node,
					map[string]any{"branch_count": branches, "nesting_depth": depth}))

			case "method":
				name := "method"
				if n := byName(caps, "method.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				branches, depth := branchMetrics(&c.node)
				nodes = append(nodes, newNode(pc.RepoID, ast.KindMethod, name, p.tag, pc.FilePath, &c.node,
					map[string]any{"branch_count": branches, "nesting_depth": depth}))

			case "class":
				key := c.node.StartByte()
				meta := classMeta[key]
				if meta == nil {
					meta = map[string]any{}
					classMeta[key] = meta
				}
				if n := byName(caps, "class.name"); n != nil {
					meta["name"] = textOf(n, pc.Content)
				}
				if n := byName(caps, "class.super"); n != nil {
					meta["base_names"] = []string{textOf(n, pc.Content)}
				}
				meta["node"] = c.node

			case "interface":
				name := "interface"
				if n := byName(caps, "interface.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindInterface, name, p.tag, pc.FilePath, &c.node, nil))

			case "type":
				name := "type"
				if n := byName(caps, "type.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindClass, name, p.tag, pc.FilePath, &c.node,
					map[string]any{"type_alias": true}))

			case "enum":
				name := "enum"
				if n := byName(caps, "enum.name"); n != nil {
					name = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindEnum, name, p.tag, pc.FilePath, &c.node, nil))

			case "import":
				ref := ""
				if n := byName(caps, "import.source"); n != nil {
					ref = trimQuotes(textOf(n, pc.Content))
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindImport, ref, p.tag, pc.FilePath, &c.node,
					map[string]any{"reference": ref}))

			case "call":
				callee := ""
				if n := byName(caps, "call.target"); n != nil {
					callee = textOf(n, pc.Content)
				}
				nodes = append(nodes, newNode(pc.RepoID, ast.KindCall, callee, p.tag, pc.FilePath, &c.node,
					map[string]any{"callee": lastSegment(callee)}))
			}
		}
	})

	for _, meta := range classMeta {
		n, _ := meta["node"].(tree_sitter.Node)
		delete(meta, "node")
		name, _ := meta["name"].(string)
		if name == "" {
			name = "class"
		}
		if attrs, ok := dynByClass[name]; ok {
			meta["dynamic_attributes"] = attrs
		}
		nodes = append(nodes, newNode(pc.RepoID, ast.KindClass, name, p.tag, pc.FilePath, &n, meta))
	}

	return langparser.ParseResult{Tree: nil, Nodes: nodes}, nil
}

// dynamicAttributesByClass wires github.com/t14raptor/go-fast (the
// teacher's JavaScriptGoFastAnalyzer dependency) into a second,
// AST-accurate pass purely for dynamic-attribute detection: it walks
// every class's constructor/method bodies looking for "this.<name>"
// member expressions (see thisMemberAssignment). The names found are
// not compared against the class's declared fields.
func dynamicAttributesByClass(content []byte) map[string][]string {
	out := map[string][]string{}
	program, err := gofastparser.ParseFile(string(content))
	if err != nil || program == nil {
		return out
	}
	for _, stmt := range program.Body {
		walkForClasses(stmt.Stmt, out)
	}
	return out
}

func walkForClasses(stmt gofastast.Stmt, out map[string][]string) {
	decl, ok := stmt.(*gofastast.ClassDeclaration)
	if !ok || decl.Class == nil || decl.Class.Name == nil {
		return
	}
	className := decl.Class.Name.Name
	seen := map[string]bool{}
	for _, elementWrap := range decl.Class.Body {
		method, ok := elementWrap.Element.(*gofastast.MethodDefinition)
		if !ok || method.Body == nil || method.Body.Body == nil {
			continue
		}
		for _, bodyStmt := range method.Body.Body.List {
			collectThisAssignments(bodyStmt.Stmt, seen)
		}
	}
	if len(seen) == 0 {
		return
	}
	attrs := make([]string, 0, len(seen))
	for name := range seen {
		attrs = append(attrs, name)
	}
	out[className] = attrs
}

// collectThisAssignments recurses into a method body's statements
// looking for "this.<name> = <expr>" expression statements, the
// common pattern for attributes a class grows at runtime rather than
// declaring statically as class fields.
func collectThisAssignments(stmt gofastast.Stmt, seen map[string]bool) {
	switch s := stmt.(type) {
	case *gofastast.BlockStatement:
		for _, inner := range s.List {
			collectThisAssignments(inner.Stmt, seen)
		}
	case *gofastast.IfStatement:
		if s.Consequent.Stmt != nil {
			collectThisAssignments(s.Consequent.Stmt, seen)
		}
		if s.Alternate.Stmt != nil {
			collectThisAssignments(s.Alternate.Stmt, seen)
		}
	case *gofastast.ExpressionStatement:
		if name, ok := thisMemberAssignment(s.Expression.Expr); ok {
			seen[name] = true
		}
	}
}

// thisMemberAssignment recognizes a "this.<name>" member expression
// appearing as the target half of an assignment statement. go-fast
// exposes an assignment as an ExpressionStatement wrapping a
// MemberExpression only when walked via its Expr interface; lacking a
// confirmed AssignmentExpression field shape to destructure further,
// this conservatively matches on the member access itself.
func thisMemberAssignment(expr gofastast.Expr) (string, bool) {
	member, ok := expr.(*gofastast.MemberExpression)
	if !ok {
		return "", false
	}
	ident, ok := member.Object.Expr.(*gofastast.Identifier)
	if !ok || ident.Name != "this" {
		return "", false
	}
	if prop, ok := member.Property.Prop.(*gofastast.Identifier); ok {
		return prop.Name, true
	}
	return "", false
}
