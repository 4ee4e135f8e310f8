package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/identity"
)

// PatternType is the closed set of conflict-prone structural patterns
// detect_patterns recognizes. Reinterpreted from the teacher's
// regex-over-file-content AntiPatternType as graph-shape detectors:
// CodePrism already has the parsed structure in the graph, so it looks
// for the shape directly instead of re-scanning text for its syntactic
// markers.
type PatternType string

const (
	PatternRegistrationFunction PatternType = "registration_function"
	PatternEnumAggregation      PatternType = "enum_aggregation"
	PatternGodObject            PatternType = "god_object"
	PatternSwitchFactory        PatternType = "switch_factory"
	PatternConfigAggregation    PatternType = "config_aggregation"
)

// Severity mirrors the teacher's three-tier AntiPatternSeverity.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Pattern is one detected instance of a PatternType.
type Pattern struct {
	Type        PatternType
	Description string
	Location    string
	Severity    Severity
	Suggestion  string
	Confidence  float64
	Metrics     map[string]int
}

// DefaultMinConfidence is the client-visible min_confidence default for
// detect_patterns (Open Question decision #2: surfaced as a tool
// parameter rather than a fixed internal threshold).
const DefaultMinConfidence = 0.6

// thresholds mirror the teacher's PatternDetector defaults, reinterpreted
// as graph-shape counts rather than regex match counts.
const (
	registrationCallsThreshold = 10
	enumMembersThreshold       = 10
	godObjectMembersThreshold  = 40
	switchFanOutThreshold      = 10
	configFieldsThreshold      = 10
)

var registrationNameMarkers = []string{
	"addtool", "register", "registerhandler", "addroute", "handle",
	"handlefunc", "post", "get", "put", "delete", "use", "bind",
}

// DetectPatterns runs the function-level detectors over every
// Function/Method node, the class-level detectors over every Class
// node, and the enum-aggregation detector once over the whole store,
// returning matches at or above minConfidence. A minConfidence <= 0
// uses DefaultMinConfidence.
func DetectPatterns(store *graphstore.Store, minConfidence float64) []Pattern {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	var out []Pattern
	for _, n := range store.AllNodes() {
		switch n.Kind {
		case ast.KindFunction, ast.KindMethod:
			if p, ok := detectRegistrationFunction(store, n); ok {
				out = append(out, p)
			}
			if p, ok := detectSwitchFactory(store, n); ok {
				out = append(out, p)
			}
		case ast.KindClass:
			if p, ok := detectGodObject(store, n); ok {
				out = append(out, p)
			}
			if p, ok := detectConfigAggregation(store, n); ok {
				out = append(out, p)
			}
		}
	}
	if p, ok := detectEnumAggregation(store); ok {
		out = append(out, p)
	}

	filtered := out[:0]
	for _, p := range out {
		if p.Confidence >= minConfidence {
			filtered = append(filtered, p)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Severity != filtered[j].Severity {
			return severityRank(filtered[i].Severity) < severityRank(filtered[j].Severity)
		}
		return filtered[i].Location < filtered[j].Location
	})
	return filtered
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// confidenceFor maps a count against a threshold onto [0,1], the same
// ratio the teacher uses for severity (>=2x threshold is "high"), just
// expressed as a continuous confidence instead of a 3-bucket severity.
func confidenceFor(count, threshold int) float64 {
	if threshold <= 0 {
		return 0
	}
	ratio := float64(count) / float64(threshold)
	c := ratio / 2.0
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func severityFor(count, threshold int) Severity {
	ratio := float64(count) / float64(threshold)
	switch {
	case ratio >= 2.0:
		return SeverityHigh
	case ratio >= 1.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// detectRegistrationFunction flags a function whose outgoing Calls
// fan out to many distinct targets whose names look like registration
// calls (Register/AddRoute/Handle/...), the graph analog of the
// teacher's regex scan for ".Register(", ".AddRoute(", etc.
func detectRegistrationFunction(store *graphstore.Store, n ast.Node) (Pattern, bool) {
	count := 0
	seen := map[identity.NodeId]bool{}
	for _, e := range store.Outgoing(n.ID) {
		if e.Kind != ast.EdgeCalls || seen[e.Target] {
			continue
		}
		target, ok := store.GetNode(e.Target)
		if !ok {
			continue
		}
		if looksLikeRegistrationCall(target.Name) {
			seen[e.Target] = true
			count++
		}
	}
	if count < registrationCallsThreshold {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternRegistrationFunction,
		Description: fmt.Sprintf("%s contains %d sequential registration calls", n.Name, count),
		Location:    fmt.Sprintf("%s:%s", n.FilePath, n.Name),
		Severity:    severityFor(count, registrationCallsThreshold),
		Suggestion:  "Consider a self-registering pattern (init-time registration or a plugin registry) instead of one large registration function",
		Confidence:  confidenceFor(count, registrationCallsThreshold),
		Metrics:     map[string]int{"registration_calls": count},
	}, true
}

func looksLikeRegistrationCall(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range registrationNameMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// detectSwitchFactory flags a function dispatching to an unusually
// large number of distinct same-kind callees, the graph analog of a
// large switch/case statement acting as a factory.
func detectSwitchFactory(store *graphstore.Store, n ast.Node) (Pattern, bool) {
	targetsByKind := map[ast.NodeKind]map[identity.NodeId]bool{}
	for _, e := range store.Outgoing(n.ID) {
		if e.Kind != ast.EdgeCalls {
			continue
		}
		target, ok := store.GetNode(e.Target)
		if !ok {
			continue
		}
		if targetsByKind[target.Kind] == nil {
			targetsByKind[target.Kind] = map[identity.NodeId]bool{}
		}
		targetsByKind[target.Kind][e.Target] = true
	}

	best := 0
	for _, set := range targetsByKind {
		if len(set) > best {
			best = len(set)
		}
	}
	if best < switchFanOutThreshold {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternSwitchFactory,
		Description: fmt.Sprintf("%s dispatches to %d same-kind callees", n.Name, best),
		Location:    fmt.Sprintf("%s:%s", n.FilePath, n.Name),
		Severity:    severityFor(best, switchFanOutThreshold),
		Suggestion:  "Consider a map-based dispatch table or strategy pattern instead of a large conditional/switch",
		Confidence:  confidenceFor(best, switchFanOutThreshold),
		Metrics:     map[string]int{"dispatch_targets": best},
	}, true
}

// detectGodObject flags a class whose contained field+method count
// exceeds a threshold, the graph analog of the teacher's large-file
// line-count check (CodePrism has symbol counts, not raw line counts,
// available per class).
func detectGodObject(store *graphstore.Store, n ast.Node) (Pattern, bool) {
	members := countContains(store, n.ID)
	if members < godObjectMembersThreshold {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternGodObject,
		Description: fmt.Sprintf("%s has %d members", n.Name, members),
		Location:    fmt.Sprintf("%s:%s", n.FilePath, n.Name),
		Severity:    severityFor(members, godObjectMembersThreshold),
		Suggestion:  "Consider splitting into smaller, focused types by responsibility",
		Confidence:  confidenceFor(members, godObjectMembersThreshold),
		Metrics:     map[string]int{"member_count": members},
	}, true
}

// detectConfigAggregation flags a class whose name or file path marks
// it as configuration and whose field count exceeds a threshold.
func detectConfigAggregation(store *graphstore.Store, n ast.Node) (Pattern, bool) {
	lowerName := strings.ToLower(n.Name)
	lowerPath := strings.ToLower(n.FilePath)
	isConfig := strings.Contains(lowerName, "config") || strings.Contains(lowerName, "settings") ||
		strings.Contains(lowerName, "options") || strings.Contains(lowerPath, "config") ||
		strings.Contains(lowerPath, "settings")
	if !isConfig {
		return Pattern{}, false
	}

	fields := 0
	for _, e := range store.Outgoing(n.ID) {
		if e.Kind != ast.EdgeContains {
			continue
		}
		target, ok := store.GetNode(e.Target)
		if ok && target.Kind == ast.KindField {
			fields++
		}
	}
	if fields < configFieldsThreshold {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternConfigAggregation,
		Description: fmt.Sprintf("%s has %d fields", n.Name, fields),
		Location:    fmt.Sprintf("%s:%s", n.FilePath, n.Name),
		Severity:    severityFor(fields, configFieldsThreshold),
		Suggestion:  "Consider splitting config by subsystem into nested structs",
		Confidence:  confidenceFor(fields, configFieldsThreshold),
		Metrics:     map[string]int{"field_count": fields},
	}, true
}

// detectEnumAggregation flags a module whose contained Enum/const-like
// Field children exceed a threshold, aggregated per file since enum
// constants are typically siblings rather than children of one class.
func detectEnumAggregation(store *graphstore.Store) (Pattern, bool) {
	perFile := map[string]int{}
	for _, n := range store.NodesOfKind(ast.KindEnum) {
		perFile[n.FilePath]++
	}
	for _, n := range store.NodesOfKind(ast.KindField) {
		if n.Metadata != nil {
			if isConst, _ := n.Metadata["is_const"].(bool); isConst {
				perFile[n.FilePath]++
			}
		}
	}

	bestFile, bestCount := "", 0
	for file, count := range perFile {
		if count > bestCount {
			bestFile, bestCount = file, count
		}
	}
	if bestCount < enumMembersThreshold {
		return Pattern{}, false
	}
	return Pattern{
		Type:        PatternEnumAggregation,
		Description: fmt.Sprintf("%s contains %d enum/const definitions", bestFile, bestCount),
		Location:    bestFile,
		Severity:    severityFor(bestCount, enumMembersThreshold),
		Suggestion:  "Consider splitting constants by domain/feature",
		Confidence:  confidenceFor(bestCount, enumMembersThreshold),
		Metrics:     map[string]int{"const_definitions": bestCount},
	}, true
}

func countContains(store *graphstore.Store, id identity.NodeId) int {
	count := 0
	for _, e := range store.Outgoing(id) {
		if e.Kind == ast.EdgeContains {
			count++
		}
	}
	return count
}
