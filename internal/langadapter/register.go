package langadapter

import (
	"github.com/codeprism-dev/codeprism/internal/langparser"
	"github.com/codeprism-dev/codeprism/internal/logging"
)

// RegisterAll builds and registers every adapter this package ships
// into reg: dedicated Go/Python/JavaScript/TypeScript adapters plus
// the shared generic query-based adapter for the remaining grammars
// (SPEC_FULL.md §4's domain-stack table). A single grammar failing to
// compile its query is logged and skipped rather than aborting
// startup for every other language, matching parserengine.Engine's
// fail-soft philosophy for a missing adapter.
func RegisterAll(reg *langparser.Registry, log *logging.Logger) {
	if log == nil {
		log = logging.Discard()
	}

	type ctor struct {
		name string
		new  func() (langparser.Parser, error)
	}
	ctors := []ctor{
		{"go", NewGoParser},
		{"python", NewPythonParser},
		{"javascript", NewJavaScriptParser},
		{"typescript", NewTypeScriptParser},
	}
	for _, c := range ctors {
		p, err := c.new()
		if err != nil {
			log.Errorf("langadapter: failed to build %s adapter: %v", c.name, err)
			continue
		}
		reg.Register(p)
	}

	for _, spec := range genericSpecs {
		p, err := newGenericParser(spec)
		if err != nil {
			log.Errorf("langadapter: failed to build generic %s adapter: %v", spec.tag, err)
			continue
		}
		reg.Register(p)
	}
}
