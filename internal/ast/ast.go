// Package ast defines CodePrism's language-neutral node/edge taxonomy:
// the "Universal AST" every language adapter maps into and every core
// component (graph store, query engine, resolver) operates over.
package ast

import (
	"github.com/codeprism-dev/codeprism/internal/identity"
)

// NodeKind is the closed set of symbol kinds the universal graph can
// represent. Adding a language never adds a NodeKind; it only adds an
// adapter that maps into the existing set.
type NodeKind uint8

const (
	KindUnknown NodeKind = iota
	KindModule
	KindPackage
	KindClass
	KindInterface
	KindEnum
	KindFunction
	KindMethod
	KindConstructor
	KindField
	KindParameter
	KindVariable
	KindImport
	KindCall
	KindLiteral
	KindAnnotation
	KindRoute
	KindSqlQuery
	KindEvent
)

var nodeKindNames = [...]string{
	KindUnknown:     "Unknown",
	KindModule:      "Module",
	KindPackage:     "Package",
	KindClass:       "Class",
	KindInterface:   "Interface",
	KindEnum:        "Enum",
	KindFunction:    "Function",
	KindMethod:      "Method",
	KindConstructor: "Constructor",
	KindField:       "Field",
	KindParameter:   "Parameter",
	KindVariable:    "Variable",
	KindImport:      "Import",
	KindCall:        "Call",
	KindLiteral:     "Literal",
	KindAnnotation:  "Annotation",
	KindRoute:       "Route",
	KindSqlQuery:    "SqlQuery",
	KindEvent:       "Event",
}

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "Unknown"
}

// kindOrder gives the total order used to break search_symbols ties:
// Module < Class < Function < Method < Field < Variable < everything else,
// as named in spec.md §4.7.
var kindOrder = map[NodeKind]int{
	KindModule:      0,
	KindPackage:     1,
	KindClass:       2,
	KindInterface:   3,
	KindEnum:        4,
	KindFunction:    5,
	KindMethod:      6,
	KindConstructor: 7,
	KindField:       8,
	KindVariable:    9,
	KindParameter:   10,
	KindImport:      11,
	KindCall:        12,
	KindLiteral:     13,
	KindAnnotation:  14,
	KindRoute:       15,
	KindSqlQuery:    16,
	KindEvent:       17,
	KindUnknown:     18,
}

// Rank returns the tie-breaking order for this kind; lower sorts first.
func (k NodeKind) Rank() int {
	if r, ok := kindOrder[k]; ok {
		return r
	}
	return len(kindOrder)
}

// EdgeKind is the closed set of relationship kinds between nodes.
type EdgeKind uint8

const (
	EdgeContains EdgeKind = iota
	EdgeCalls
	EdgeReads
	EdgeWrites
	EdgeImports
	EdgeEmits
	EdgeRoutesTo
	EdgeRaises
	EdgeExtends
	EdgeImplements
	EdgeAnnotates
)

var edgeKindNames = [...]string{
	EdgeContains:   "Contains",
	EdgeCalls:      "Calls",
	EdgeReads:      "Reads",
	EdgeWrites:     "Writes",
	EdgeImports:    "Imports",
	EdgeEmits:      "Emits",
	EdgeRoutesTo:   "RoutesTo",
	EdgeRaises:     "Raises",
	EdgeExtends:    "Extends",
	EdgeImplements: "Implements",
	EdgeAnnotates:  "Annotates",
}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return "Unknown"
}

// Node is an immutable universal-graph node. Mutation is expressed as
// delete-then-re-add-with-a-new-id (spec.md §3): Node has no setters.
type Node struct {
	ID        identity.NodeId
	RepoID    string
	Kind      NodeKind
	Name      string
	Language  string
	FilePath  string
	Span      identity.Span
	Signature string
	Metadata  map[string]any
}

// NewNode builds a Node whose ID is computed from its content, so two
// calls with identical fields always yield an identical ID.
func NewNode(repoID string, kind NodeKind, name, language, filePath string, span identity.Span, signature string, metadata map[string]any) Node {
	return Node{
		ID:        identity.NewNodeId(repoID, filePath, kind.String(), name, span),
		RepoID:    repoID,
		Kind:      kind,
		Name:      name,
		Language:  language,
		FilePath:  filePath,
		Span:      span,
		Signature: signature,
		Metadata:  metadata,
	}
}

// Edge is a directed, value-typed relationship between two nodes.
// Duplicate (Source, Target, Kind) triples are deduplicated by the
// graph store on insert.
type Edge struct {
	Source identity.NodeId
	Target identity.NodeId
	Kind   EdgeKind
}

// ContentType is the closed taxonomy content chunks are classified
// into for the content index (spec.md §3).
type ContentType struct {
	Category string // "Code", "Documentation", "Configuration", "Comment", "PlainText"
	Sub      string // language/format for Code/Documentation/Configuration; comment-context for Comment
}

// Comment contexts, used as ContentType.Sub when Category == "Comment".
const (
	CommentContextDocumentation = "Documentation"
	CommentContextFunction      = "Function"
	CommentContextClass         = "Class"
)

// ContentChunk is a unit of indexable text content (spec.md §3).
type ContentChunk struct {
	ChunkID        string
	FilePath       string
	ContentType    ContentType
	Content        []byte
	Tokens         map[string]struct{}
	RelatedNodeIDs []identity.NodeId
}
