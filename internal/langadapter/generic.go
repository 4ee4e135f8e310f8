package langadapter

import (
	"context"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

// captureKind maps a query's main capture name to the universal kind
// it produces; nameCap holds the capture that names it. When nameCap is
// empty, an import takes the main capture node's text as its name and
// any other kind takes the capture name itself (e.g. "call").
type captureKind struct {
	capture  string
	kind     ast.NodeKind
	nameCap  string
	isImport bool
}

// genericSpec is one entry in the shared query-based adapter table
// (SPEC_FULL.md §4: "remaining grammars registered with a shared
// generic query-based adapter"). Each entry's query and capture shapes
// are grounded on the teacher's per-language setup* functions in
// parser_language_setup.go.
type genericSpec struct {
	language langparser.Language
	tag      string
	grammar  func() unsafe.Pointer
	query    string
	captures []captureKind
}

var genericSpecs = []genericSpec{
	{
		language: langparser.LanguageJava,
		tag:      "java",
		grammar:  func() unsafe.Pointer { return tree_sitter_java.Language() },
		query: `
(method_declaration name: (identifier) @method.name) @method
(constructor_declaration name: (identifier) @constructor.name) @constructor
(class_declaration name: (identifier) @class.name) @class
(interface_declaration name: (identifier) @interface.name) @interface
(enum_declaration name: (identifier) @enum.name) @enum
(field_declaration declarator: (variable_declarator name: (identifier) @field.name)) @field
(import_declaration) @import
(method_invocation name: (identifier) @call.target) @call
`,
		captures: []captureKind{
			{capture: "method", kind: ast.KindMethod, nameCap: "method.name"},
			{capture: "constructor", kind: ast.KindConstructor, nameCap: "constructor.name"},
			{capture: "class", kind: ast.KindClass, nameCap: "class.name"},
			{capture: "interface", kind: ast.KindInterface, nameCap: "interface.name"},
			{capture: "enum", kind: ast.KindEnum, nameCap: "enum.name"},
			{capture: "field", kind: ast.KindField, nameCap: "field.name"},
			{capture: "import", kind: ast.KindImport, isImport: true},
			{capture: "call", kind: ast.KindCall, nameCap: "call.target"},
		},
	},
	{
		language: langparser.LanguageCSharp,
		tag:      "csharp",
		grammar:  func() unsafe.Pointer { return tree_sitter_csharp.Language() },
		query: `
(method_declaration name: (identifier) @method.name) @method
(constructor_declaration name: (identifier) @constructor.name) @constructor
(class_declaration name: (identifier) @class.name) @class
(interface_declaration name: (identifier) @interface.name) @interface
(struct_declaration name: (identifier) @class.name) @class
(enum_declaration name: (identifier) @enum.name) @enum
(property_declaration name: (identifier) @field.name) @field
(using_directive (qualified_name) @import.name) @import
(using_directive (identifier) @import.name) @import
(invocation_expression function: (_) @call.target) @call
`,
		captures: []captureKind{
			{capture: "method", kind: ast.KindMethod, nameCap: "method.name"},
			{capture: "constructor", kind: ast.KindConstructor, nameCap: "constructor.name"},
			{capture: "class", kind: ast.KindClass, nameCap: "class.name"},
			{capture: "interface", kind: ast.KindInterface, nameCap: "interface.name"},
			{capture: "enum", kind: ast.KindEnum, nameCap: "enum.name"},
			{capture: "field", kind: ast.KindField, nameCap: "field.name"},
			{capture: "import", kind: ast.KindImport, nameCap: "import.name", isImport: true},
			{capture: "call", kind: ast.KindCall, nameCap: "call.target"},
		},
	},
	{
		language: langparser.LanguageCPP,
		tag:      "cpp",
		grammar:  func() unsafe.Pointer { return tree_sitter_cpp.Language() },
		query: `
(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
(class_specifier name: (type_identifier) @class.name) @class
(struct_specifier name: (type_identifier) @class.name) @class
(enum_specifier name: (type_identifier) @enum.name) @enum
(preproc_include) @import
(call_expression function: (_) @call.target) @call
`,
		captures: []captureKind{
			{capture: "function", kind: ast.KindFunction, nameCap: "function.name"},
			{capture: "class", kind: ast.KindClass, nameCap: "class.name"},
			{capture: "enum", kind: ast.KindEnum, nameCap: "enum.name"},
			{capture: "import", kind: ast.KindImport, isImport: true},
			{capture: "call", kind: ast.KindCall, nameCap: "call.target"},
		},
	},
	{
		language: langparser.LanguagePHP,
		tag:      "php",
		grammar:  func() unsafe.Pointer { return tree_sitter_php.LanguagePHP() },
		query: `
(class_declaration name: (name) @class.name) @class
(interface_declaration name: (name) @interface.name) @interface
(trait_declaration name: (name) @class.name) @class
(enum_declaration name: (name) @enum.name) @enum
(function_definition name: (name) @function.name) @function
(method_declaration name: (name) @method.name) @method
(namespace_use_declaration) @import
(function_call_expression function: (_) @call.target) @call
`,
		captures: []captureKind{
			{capture: "function", kind: ast.KindFunction, nameCap: "function.name"},
			{capture: "method", kind: ast.KindMethod, nameCap: "method.name"},
			{capture: "class", kind: ast.KindClass, nameCap: "class.name"},
			{capture: "interface", kind: ast.KindInterface, nameCap: "interface.name"},
			{capture: "enum", kind: ast.KindEnum, nameCap: "enum.name"},
			{capture: "import", kind: ast.KindImport, isImport: true},
			{capture: "call", kind: ast.KindCall, nameCap: "call.target"},
		},
	},
	{
		language: langparser.LanguageRust,
		tag:      "rust",
		grammar:  func() unsafe.Pointer { return tree_sitter_rust.Language() },
		query: `
(impl_item
    body: (declaration_list
        (function_item name: (identifier) @method.name))) @method
(function_item name: (identifier) @function.name) @function
(struct_item name: (type_identifier) @class.name) @class
(enum_item name: (type_identifier) @enum.name) @enum
(trait_item name: (type_identifier) @interface.name) @interface
(use_declaration) @import
(call_expression function: (_) @call.target) @call
`,
		captures: []captureKind{
			{capture: "function", kind: ast.KindFunction, nameCap: "function.name"},
			{capture: "method", kind: ast.KindMethod, nameCap: "method.name"},
			{capture: "class", kind: ast.KindClass, nameCap: "class.name"},
			{capture: "enum", kind: ast.KindEnum, nameCap: "enum.name"},
			{capture: "interface", kind: ast.KindInterface, nameCap: "interface.name"},
			{capture: "import", kind: ast.KindImport, isImport: true},
			{capture: "call", kind: ast.KindCall, nameCap: "call.target"},
		},
	},
	{
		language: langparser.LanguageZig,
		tag:      "zig",
		grammar:  func() unsafe.Pointer { return tree_sitter_zig.Language() },
		query: `
(function_declaration (identifier) @function.name) @function
(call_expression) @call
`,
		captures: []captureKind{
			{capture: "function", kind: ast.KindFunction, nameCap: "function.name"},
			{capture: "call", kind: ast.KindCall},
		},
	},
}

type genericParser struct {
	spec  genericSpec
	lang  *tree_sitter.Language
	query *tree_sitter.Query
}

// newGenericParser compiles one genericSpec entry into a ready adapter.
func newGenericParser(spec genericSpec) (langparser.Parser, error) {
	lang := tree_sitter.NewLanguage(spec.grammar())
	q, err := compileQuery(lang, spec.query)
	if err != nil {
		return nil, err
	}
	return &genericParser{spec: spec, lang: lang, query: q}, nil
}

func (p *genericParser) Language() langparser.Language { return p.spec.language }

func (p *genericParser) Parse(ctx context.Context, pc langparser.ParseContext) (langparser.ParseResult, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return langparser.ParseResult{}, parseFailure("langadapter.generic."+p.spec.tag+".Parse", pc.FilePath, err)
	}

	tree := parser.Parse(pc.Content, nil)
	if tree == nil {
		return langparser.ParseResult{}, parseFailure("langadapter.generic."+p.spec.tag+".Parse", pc.FilePath, nil)
	}
	defer tree.Close()

	var nodes []ast.Node
	root := tree.RootNode()

	byCapture := make(map[string]captureKind, len(p.spec.captures))
	for _, ck := range p.spec.captures {
		byCapture[ck.capture] = ck
	}

	eachMatch(p.query, *root, pc.Content, func(caps []capture) {
		for i := range caps {
			c := caps[i]
			ck, ok := byCapture[c.name]
			if !ok {
				continue
			}
			name := c.name
			if ck.nameCap != "" {
				if n := byName(caps, ck.nameCap); n != nil {
					name = textOf(n, pc.Content)
				}
			} else if ck.isImport || ck.kind == ast.KindImport {
				name = textOf(&c.node, pc.Content)
			}

			extra := map[string]any{}
			if ck.isImport {
				extra["reference"] = name
			}
			if ck.kind == ast.KindCall {
				extra["callee"] = lastSegment(name)
			}
			if ck.kind == ast.KindFunction || ck.kind == ast.KindMethod || ck.kind == ast.KindConstructor {
				branches, depth := branchMetrics(&c.node)
				extra["branch_count"] = branches
				extra["nesting_depth"] = depth
			}

			nodes = append(nodes, newNode(pc.RepoID, ck.kind, name, p.spec.tag, pc.FilePath, &c.node, extra))
		}
	})

	return langparser.ParseResult{Tree: nil, Nodes: nodes}, nil
}
