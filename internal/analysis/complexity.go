// Package analysis computes code-quality signals over the universal
// graph: cyclomatic complexity per function/method (analyze_complexity)
// and conflict-prone structural patterns (detect_patterns). Both are
// named in spec.md §4.11's tool list but left undefined there;
// SPEC_FULL.md §5 grounds them in the teacher's
// internal/analysis/metrics_calculator.go and internal/git/pattern_detector.go.
package analysis

import (
	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/identity"
)

// ComplexityReport is analyze_complexity's result shape for one
// function or method.
type ComplexityReport struct {
	Node                  ast.Node
	CyclomaticComplexity  int
	NestingDepth          int
	OutgoingCallCount     int
	Tags                  []string
}

// highComplexityThreshold mirrors the teacher's SymbolMetrics "HIGH_COMPLEXITY"
// tag cutoff.
const highComplexityThreshold = 10

// ComputeComplexity reports cyclomatic complexity for node. When the
// language adapter attached a "branch_count" metadata field (each
// decision point: if/for/while/case/catch), complexity is
// 1 + branch_count, the standard McCabe formula. Otherwise it falls
// back to 1 + the number of distinct outgoing Calls, a coarser proxy
// used when no adapter-level branch accounting is available.
func ComputeComplexity(store *graphstore.Store, nodeID identity.NodeId) (ComplexityReport, bool) {
	n, ok := store.GetNode(nodeID)
	if !ok || (n.Kind != ast.KindFunction && n.Kind != ast.KindMethod && n.Kind != ast.KindConstructor) {
		return ComplexityReport{}, false
	}

	report := ComplexityReport{Node: n}
	if branchCount, ok := n.Metadata["branch_count"].(int); ok {
		report.CyclomaticComplexity = 1 + branchCount
	} else {
		report.CyclomaticComplexity = 1 + countDistinctCallTargets(store, nodeID)
	}
	if depth, ok := n.Metadata["nesting_depth"].(int); ok {
		report.NestingDepth = depth
	}
	report.OutgoingCallCount = countDistinctCallTargets(store, nodeID)

	if report.CyclomaticComplexity >= highComplexityThreshold {
		report.Tags = append(report.Tags, "HIGH_COMPLEXITY")
	}
	return report, true
}

func countDistinctCallTargets(store *graphstore.Store, nodeID identity.NodeId) int {
	seen := map[identity.NodeId]bool{}
	for _, e := range store.Outgoing(nodeID) {
		if e.Kind == ast.EdgeCalls {
			seen[e.Target] = true
		}
	}
	return len(seen)
}

// ComputeComplexityForFile runs ComputeComplexity over every
// function/method/constructor defined in filePath.
func ComputeComplexityForFile(store *graphstore.Store, filePath string) []ComplexityReport {
	var out []ComplexityReport
	for _, n := range store.NodesInFile(filePath) {
		if n.Kind != ast.KindFunction && n.Kind != ast.KindMethod && n.Kind != ast.KindConstructor {
			continue
		}
		if r, ok := ComputeComplexity(store, n.ID); ok {
			out = append(out, r)
		}
	}
	return out
}
