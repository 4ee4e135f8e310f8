// Package session implements spec.md §4.12's per-client workflow
// context: a current stage, a history of tool invocations, and
// advisory (never gating) suggestions for what to do next. No example
// in the corpus tracks assistant-facing workflow stages like this; it
// is built fresh in the repository's idiom (small structs, explicit
// mutex-guarded state, same shape as internal/anacache/observability)
// rather than grounded on a specific pack file.
package session

import (
	"sync"
	"time"
)

// Stage is one point in the exploration workflow spec.md §4.12 names.
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StageMapping   Stage = "mapping"
	StageDeepDive  Stage = "deep_dive"
	StageSynthesis Stage = "synthesis"
)

// stageOrder is the natural progression Advance walks through.
var stageOrder = []Stage{StageDiscovery, StageMapping, StageDeepDive, StageSynthesis}

// stageTools is the small set of tools each stage is "about"; reaching
// coverageThreshold of a stage's set is what advances the stage in
// Record (spec.md §4.12: "≥60% coverage of a small per-stage tool
// set").
var stageTools = map[Stage][]string{
	StageDiscovery: {"repository_stats", "content_stats", "find_files", "search_content"},
	StageMapping:   {"search_symbols", "find_references", "find_dependencies"},
	StageDeepDive:  {"explain_symbol", "trace_inheritance", "analyze_complexity"},
	StageSynthesis: {"detect_patterns", "find_dependencies", "explain_symbol"},
}

const coverageThreshold = 0.6

// Invocation is one recorded tool call.
type Invocation struct {
	Tool    string
	Success bool
	At      time.Time
}

// Suggestion is advisory output only; spec.md §4.12: "Suggestions are
// advisory; they do not gate execution."
type Suggestion struct {
	NextTool  string
	NextStage Stage // empty when no stage advance is suggested
	Hints     []string
}

// Session tracks one client's workflow state across a run of tool
// calls.
type Session struct {
	mu      sync.Mutex
	stage   Stage
	history []Invocation
}

// New creates a Session starting at StageDiscovery.
func New() *Session {
	return &Session{stage: StageDiscovery}
}

// Stage returns the current workflow stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// History returns a copy of every recorded invocation, oldest first.
func (s *Session) History() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invocation, len(s.history))
	copy(out, s.history)
	return out
}

// Record appends one tool invocation to the session's history and
// advances the stage if the current stage's tool set is now
// sufficiently covered.
func (s *Session) Record(tool string, success bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Invocation{Tool: tool, Success: success, At: at})
	if s.coverageLocked(s.stage) >= coverageThreshold {
		s.advanceLocked()
	}
}

func (s *Session) advanceLocked() {
	for i, st := range stageOrder {
		if st == s.stage && i+1 < len(stageOrder) {
			s.stage = stageOrder[i+1]
			return
		}
	}
}

// coverageLocked returns the fraction of stage's tool set that has
// appeared at least once (successfully) in history.
func (s *Session) coverageLocked(stage Stage) float64 {
	tools := stageTools[stage]
	if len(tools) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(tools))
	for _, inv := range s.history {
		if inv.Success {
			seen[inv.Tool] = true
		}
	}
	covered := 0
	for _, t := range tools {
		if seen[t] {
			covered++
		}
	}
	return float64(covered) / float64(len(tools))
}

// Suggest computes the next best tool for the current stage, a
// candidate next stage once coverage has crossed the threshold, and
// advisory optimization hints. It never mutates state.
func (s *Session) Suggest() Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	sugg := Suggestion{NextTool: s.nextToolLocked()}
	if s.coverageLocked(s.stage) >= coverageThreshold {
		for i, st := range stageOrder {
			if st == s.stage && i+1 < len(stageOrder) {
				sugg.NextStage = stageOrder[i+1]
			}
		}
	}
	sugg.Hints = s.hintsLocked()
	return sugg
}

func (s *Session) nextToolLocked() string {
	seen := make(map[string]bool)
	for _, inv := range s.history {
		if inv.Success {
			seen[inv.Tool] = true
		}
	}
	for _, t := range stageTools[s.stage] {
		if !seen[t] {
			return t
		}
	}
	return ""
}

// repeatedCallHintThreshold is how many times the same tool can be
// called before Suggest proposes caching it.
const repeatedCallHintThreshold = 3

func (s *Session) hintsLocked() []string {
	var hints []string

	counts := make(map[string]int)
	for _, inv := range s.history {
		counts[inv.Tool]++
	}
	for tool, n := range counts {
		if n >= repeatedCallHintThreshold && !isCheapTool(tool) {
			hints = append(hints, "consider caching repeated calls to "+tool)
		}
	}

	if s.independentAnalysisRunLocked() {
		hints = append(hints, "independent analysis calls in this stage could run in parallel")
	}

	return hints
}

// cheapTools are already served from the in-memory graph/content index
// with no meaningful recomputation cost, so repetition isn't worth a
// caching hint.
var cheapTools = map[string]bool{"repository_stats": true, "content_stats": true, "find_files": true}

func isCheapTool(tool string) bool { return cheapTools[tool] }

// independentAnalysisTools are read-only queries with no dependency on
// each other's result, so running several back-to-back within a stage
// is a parallelization opportunity.
var independentAnalysisTools = map[string]bool{
	"search_symbols": true, "search_content": true, "find_dependencies": true,
	"find_references": true, "analyze_complexity": true,
}

func (s *Session) independentAnalysisRunLocked() bool {
	distinct := make(map[string]bool)
	for _, inv := range s.history {
		if independentAnalysisTools[inv.Tool] {
			distinct[inv.Tool] = true
		}
	}
	return len(distinct) >= 2
}
