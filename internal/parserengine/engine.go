// Package parserengine dispatches a file to the right language parser
// and produces the nodes/edges that parser returns (spec.md §4.2). It
// holds no grammar logic of its own.
package parserengine

import (
	"context"
	"fmt"

	"github.com/codeprism-dev/codeprism/internal/langparser"
	"github.com/codeprism-dev/codeprism/internal/logging"
)

// Engine dispatches ParseContexts to registered language adapters.
type Engine struct {
	registry *langparser.Registry
	log      *logging.Logger
}

// New creates an Engine backed by the given registry.
func New(registry *langparser.Registry, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{registry: registry, log: log}
}

// ErrNoParser is returned when no adapter is registered for a language;
// callers that want fail-soft behavior should log it and continue
// (spec.md §4.2: "fails soft ... when no parser is registered").
type ErrNoParser struct {
	Language langparser.Language
}

func (e *ErrNoParser) Error() string {
	return fmt.Sprintf("parserengine: no parser registered for language %q", e.Language)
}

// Parse dispatches pc to the adapter registered for lang. When no
// adapter is registered it logs the condition and returns an empty
// result alongside ErrNoParser, so the caller can record a soft
// failure rather than aborting (spec.md §4.2, §7 Parse kind).
func (e *Engine) Parse(ctx context.Context, lang langparser.Language, pc langparser.ParseContext) (langparser.ParseResult, error) {
	p, ok := e.registry.Lookup(lang)
	if !ok {
		e.log.Errorf("parserengine: no parser for language %q, file %s", lang, pc.FilePath)
		return langparser.ParseResult{}, &ErrNoParser{Language: lang}
	}
	return p.Parse(ctx, pc)
}

// Registry exposes the underlying registry for adapters that need to
// register themselves (e.g. at server construction).
func (e *Engine) Registry() *langparser.Registry {
	return e.registry
}
