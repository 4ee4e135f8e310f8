// Package langparser defines the capability port any language adapter
// must implement (spec.md §4.2). The core never contains grammar
// logic; it only depends on this interface and a registry keyed by
// Language.
package langparser

import (
	"context"

	"github.com/codeprism-dev/codeprism/internal/ast"
)

// Language identifies a source language a file was classified into.
type Language string

const (
	LanguageUnknown    Language = ""
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageCSharp     Language = "csharp"
	LanguageCPP        Language = "cpp"
	LanguagePHP        Language = "php"
	LanguageRust       Language = "rust"
	LanguageZig        Language = "zig"
)

// ParseContext is the input to a single parse operation.
type ParseContext struct {
	RepoID       string
	FilePath     string
	Content      []byte
	PreviousTree any // opaque, adapter-defined; engine never inspects it
}

// ParseResult is a single file's contribution to the universal graph.
type ParseResult struct {
	Tree  any // opaque, adapter-defined; may be passed back as PreviousTree
	Nodes []ast.Node
	Edges []ast.Edge
}

// Parser is the capability any language adapter implements. An
// adapter translates language-specific AST shapes into the universal
// NodeKind/EdgeKind taxonomy; that mapping is entirely the adapter's
// responsibility (spec.md §4.2).
type Parser interface {
	// Language reports which Language this adapter handles.
	Language() Language
	// Parse produces nodes and edges for one file. previous_tree, when
	// non-nil, may be used by the adapter to perform an incremental
	// reparse; the engine never depends on whether it was used.
	Parse(ctx context.Context, pc ParseContext) (ParseResult, error)
}

// Registry holds one Parser per Language, keyed the way the teacher's
// parser_language_setup.go keys its lazy-init map.
type Registry struct {
	parsers map[Language]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[Language]Parser)}
}

// Register adds or replaces the adapter for a language.
func (r *Registry) Register(p Parser) {
	r.parsers[p.Language()] = p
}

// Lookup returns the adapter for a language, or false when none is
// registered (the engine fails soft in that case, per spec.md §4.2).
func (r *Registry) Lookup(lang Language) (Parser, bool) {
	p, ok := r.parsers[lang]
	return p, ok
}

// Languages returns every language with a registered adapter.
func (r *Registry) Languages() []Language {
	langs := make([]Language, 0, len(r.parsers))
	for l := range r.parsers {
		langs = append(langs, l)
	}
	return langs
}
