// Package langadapter provides the concrete tree-sitter-backed
// implementations of langparser.Parser (spec.md §4.2). The core never
// imports a grammar directly; every adapter here is a plain,
// swappable collaborator registered into a langparser.Registry by
// RegisterAll.
package langadapter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/errors"
	"github.com/codeprism-dev/codeprism/internal/identity"
)

// spanOf converts a tree-sitter node's byte range and 0-based
// row/column positions into the universal Span's 1-based coordinates.
func spanOf(n *tree_sitter.Node) identity.Span {
	start := n.StartPosition()
	end := n.EndPosition()
	return identity.Span{
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
	}
}

// textOf returns the source bytes a node covers.
func textOf(n *tree_sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

// capture is one (name, node) pair a query match yielded.
type capture struct {
	name string
	node tree_sitter.Node
}

// eachMatch runs query over root and calls fn once per match with the
// match's captures, mirroring the teacher's extractBasicSymbolsStringRef
// query-cursor loop (parser.go).
func eachMatch(query *tree_sitter.Query, root tree_sitter.Node, content []byte, fn func(caps []capture)) {
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	names := query.CaptureNames()
	matches := qc.Matches(query, root, content)
	for {
		m := matches.Next()
		if m == nil {
			return
		}
		caps := make([]capture, 0, len(m.Captures))
		for _, c := range m.Captures {
			caps = append(caps, capture{name: names[c.Index], node: c.Node})
		}
		fn(caps)
	}
}

// byName returns the first capture whose name equals want, or nil.
func byName(caps []capture, want string) *tree_sitter.Node {
	for i := range caps {
		if caps[i].name == want {
			return &caps[i].node
		}
	}
	return nil
}

// parseFailure wraps a tree-sitter setup or parse failure into the
// CodePrism error taxonomy.
func parseFailure(op, filePath string, err error) error {
	return errors.New(errors.KindParse, errors.SeverityError, op, err).WithFile(filePath)
}

// compileQuery compiles a tree-sitter query, working around the
// go-tree-sitter binding quirk (noted in the teacher's
// parser_language_setup.go) where a successful compile can still
// return a non-nil error value; a nil query is the only reliable
// failure signal.
func compileQuery(lang *tree_sitter.Language, src string) (*tree_sitter.Query, error) {
	q, err := tree_sitter.NewQuery(lang, src)
	if q == nil {
		if err != nil {
			return nil, err
		}
		return nil, errors.New(errors.KindParse, errors.SeverityError, "langadapter.compileQuery", nil)
	}
	return q, nil
}

// nodeMetadata builds the Metadata map attached to every extracted
// Node: the raw tree-sitter node kind plus caller-supplied extras, so
// downstream tools (detect_patterns, analyze_complexity) can inspect
// language-specific shape without the core depending on it.
func nodeMetadata(n *tree_sitter.Node, extra map[string]any) map[string]any {
	meta := map[string]any{"ts_kind": n.Kind()}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

func newNode(repoID string, kind ast.NodeKind, name, language, filePath string, n *tree_sitter.Node, extra map[string]any) ast.Node {
	span := spanOf(n)
	return ast.NewNode(repoID, kind, name, language, filePath, span, "", nodeMetadata(n, extra))
}

// branchKinds is the language-agnostic set of tree-sitter node kinds
// that count as a decision point, grounded on the teacher's
// walkNodeForCyclomatic (parser.go): every tree-sitter grammar in the
// pack names if/loop/case/catch/ternary constructs with one of these
// node kinds, so one table covers Go, Python, and the generic
// query-based languages alike.
var branchKinds = map[string]bool{
	"if_statement": true, "if_expression": true,
	"for_statement": true, "for_range_statement": true, "for_in_statement": true,
	"while_statement": true, "do_while_statement": true,
	"case_clause": true, "case_statement": true, "expression_case": true, "type_case": true,
	"conditional_expression": true, "ternary_expression": true,
	"catch_clause": true, "except_clause": true,
}

// branchMetrics computes analyze_complexity's (internal/analysis/complexity.go)
// "branch_count"/"nesting_depth" metadata fields for one function-shaped
// node, matching McCabe's 1-plus-decision-points formula the analysis
// package expects: branch_count is the decision-point count (the "+1"
// base complexity is added by the analysis package, not here).
func branchMetrics(n *tree_sitter.Node) (branchCount, nestingDepth int) {
	var walk func(cur *tree_sitter.Node, depth int)
	walk = func(cur *tree_sitter.Node, depth int) {
		kind := cur.Kind()
		isBranch := branchKinds[kind]
		if kind == "binary_expression" && cur.ChildCount() >= 3 {
			if op := cur.Child(1); op != nil {
				switch op.Kind() {
				case "&&", "||", "and", "or":
					isBranch = true
				}
			}
		}
		if isBranch {
			branchCount++
			depth++
			if depth > nestingDepth {
				nestingDepth = depth
			}
		}
		for i := uint(0); i < cur.ChildCount(); i++ {
			if child := cur.Child(i); child != nil {
				walk(child, depth)
			}
		}
	}
	walk(n, 0)
	return branchCount, nestingDepth
}
