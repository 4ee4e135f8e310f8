package session

import (
	"testing"
	"time"
)

func TestNewSessionStartsAtDiscovery(t *testing.T) {
	s := New()
	if s.Stage() != StageDiscovery {
		t.Fatalf("expected initial stage discovery, got %s", s.Stage())
	}
}

func TestRecordAdvancesStageAtCoverageThreshold(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	// 3 of 4 discovery tools = 75% >= 60%.
	s.Record("repository_stats", true, now)
	s.Record("content_stats", true, now)
	s.Record("find_files", true, now)

	if s.Stage() != StageMapping {
		t.Fatalf("expected advance to mapping after covering discovery, got %s", s.Stage())
	}
}

func TestRecordDoesNotAdvanceBelowThreshold(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	// 1 of 4 discovery tools = 25% < 60%.
	s.Record("repository_stats", true, now)

	if s.Stage() != StageDiscovery {
		t.Fatalf("expected to remain at discovery, got %s", s.Stage())
	}
}

func TestFailedInvocationsDoNotCountTowardCoverage(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	s.Record("repository_stats", false, now)
	s.Record("content_stats", false, now)
	s.Record("find_files", false, now)

	if s.Stage() != StageDiscovery {
		t.Fatalf("expected failed invocations not to advance the stage, got %s", s.Stage())
	}
}

func TestSuggestNextToolSkipsAlreadyInvoked(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	s.Record("repository_stats", true, now)

	sugg := s.Suggest()
	if sugg.NextTool == "repository_stats" {
		t.Fatalf("expected next tool to skip already-invoked repository_stats, got %+v", sugg)
	}
	if sugg.NextTool == "" {
		t.Fatalf("expected a concrete next-tool suggestion, got none")
	}
}

func TestSuggestDoesNotGateHistory(t *testing.T) {
	s := New()
	// Suggest before any recorded calls should not panic and should
	// propose the first discovery tool.
	sugg := s.Suggest()
	if sugg.NextTool == "" {
		t.Fatalf("expected a suggestion even with empty history")
	}
}

func TestSuggestHintsCachingOnRepeatedExpensiveCalls(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	for i := 0; i < repeatedCallHintThreshold; i++ {
		s.Record("search_content", true, now)
	}
	sugg := s.Suggest()
	found := false
	for _, h := range sugg.Hints {
		if h == "consider caching repeated calls to search_content" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a caching hint for repeated search_content calls, got %+v", sugg.Hints)
	}
}

func TestSuggestDoesNotHintCachingForCheapTools(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	for i := 0; i < repeatedCallHintThreshold; i++ {
		s.Record("repository_stats", true, now)
	}
	sugg := s.Suggest()
	for _, h := range sugg.Hints {
		if h == "consider caching repeated calls to repository_stats" {
			t.Fatalf("did not expect a caching hint for a cheap, already in-memory tool: %+v", sugg.Hints)
		}
	}
}

func TestSuggestHintsParallelizationForIndependentAnalysisCalls(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	s.Record("search_symbols", true, now)
	s.Record("find_dependencies", true, now)

	sugg := s.Suggest()
	found := false
	for _, h := range sugg.Hints {
		if h == "independent analysis calls in this stage could run in parallel" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a parallelization hint, got %+v", sugg.Hints)
	}
}

func TestHistoryReturnsCopyNotInternalSlice(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	s.Record("repository_stats", true, now)

	hist := s.History()
	hist[0].Tool = "mutated"

	if s.History()[0].Tool != "repository_stats" {
		t.Fatalf("expected History() to return a defensive copy")
	}
}

func TestSynthesisIsTheLastStage(t *testing.T) {
	s := New()
	now := time.Unix(0, 0)
	for _, tool := range []string{"repository_stats", "content_stats", "find_files"} {
		s.Record(tool, true, now)
	}
	for _, tool := range []string{"search_symbols", "find_references", "find_dependencies"} {
		s.Record(tool, true, now)
	}
	for _, tool := range []string{"explain_symbol", "trace_inheritance", "analyze_complexity"} {
		s.Record(tool, true, now)
	}
	if s.Stage() != StageSynthesis {
		t.Fatalf("expected to reach synthesis after covering all earlier stages, got %s", s.Stage())
	}
	for _, tool := range []string{"detect_patterns", "find_dependencies", "explain_symbol"} {
		s.Record(tool, true, now)
	}
	if s.Stage() != StageSynthesis {
		t.Fatalf("expected synthesis to be terminal, got %s", s.Stage())
	}
}
