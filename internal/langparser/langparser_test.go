package langparser

import (
	"context"
	"testing"
)

type stubParser struct{ lang Language }

func (s stubParser) Language() Language { return s.lang }
func (s stubParser) Parse(ctx context.Context, pc ParseContext) (ParseResult, error) {
	return ParseResult{}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup(LanguageGo); ok {
		t.Fatalf("expected no parser registered for go on a fresh registry")
	}

	r.Register(stubParser{lang: LanguageGo})
	p, ok := r.Lookup(LanguageGo)
	if !ok || p.Language() != LanguageGo {
		t.Fatalf("expected a registered go parser, got %v, %v", p, ok)
	}

	r.Register(stubParser{lang: LanguageGo})
	if len(r.Languages()) != 1 {
		t.Fatalf("re-registering the same language should replace, not duplicate: got %d languages", len(r.Languages()))
	}
}

func TestRegistryLanguagesListsEveryRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register(stubParser{lang: LanguageGo})
	r.Register(stubParser{lang: LanguagePython})

	got := map[Language]bool{}
	for _, l := range r.Languages() {
		got[l] = true
	}
	if !got[LanguageGo] || !got[LanguagePython] {
		t.Fatalf("Languages() = %v, want go and python", r.Languages())
	}
}
