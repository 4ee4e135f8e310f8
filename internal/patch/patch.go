// Package patch implements the additive/deletive delta that is the
// sole write path to the graph store (spec.md §3, §4.4).
package patch

import (
	"time"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/identity"
)

// EdgeDelete identifies an edge to remove by value, since edges carry
// no identifier of their own.
type EdgeDelete struct {
	Source identity.NodeId
	Target identity.NodeId
	Kind   ast.EdgeKind
}

// Patch is a repo-and-commit tagged delta of nodes and edges. It is
// the only way nodes and edges reach the graph store (spec.md §3).
type Patch struct {
	RepoID      string
	CommitSHA   string
	NodesAdd    []ast.Node
	EdgesAdd    []ast.Edge
	NodesDelete []identity.NodeId
	EdgesDelete []EdgeDelete
	CreatedAt   time.Time
}

// New creates an empty Patch tagged with repoID/commitSHA.
func New(repoID, commitSHA string) *Patch {
	return &Patch{RepoID: repoID, CommitSHA: commitSHA, CreatedAt: time.Now()}
}

// AddNode appends a node to the patch's additive set.
func (p *Patch) AddNode(n ast.Node) {
	p.NodesAdd = append(p.NodesAdd, n)
}

// AddEdge appends an edge to the patch's additive set.
func (p *Patch) AddEdge(e ast.Edge) {
	p.EdgesAdd = append(p.EdgesAdd, e)
}

// DeleteNode appends a node id to the patch's deletive set.
func (p *Patch) DeleteNode(id identity.NodeId) {
	p.NodesDelete = append(p.NodesDelete, id)
}

// DeleteEdge appends an edge value to the patch's deletive set.
func (p *Patch) DeleteEdge(e EdgeDelete) {
	p.EdgesDelete = append(p.EdgesDelete, e)
}

// IsEmpty reports whether the patch carries no changes at all.
func (p *Patch) IsEmpty() bool {
	return len(p.NodesAdd) == 0 && len(p.EdgesAdd) == 0 && len(p.NodesDelete) == 0 && len(p.EdgesDelete) == 0
}

// EstimatedBytes implements the bulk indexer's rough per-patch memory
// estimator: ~200 bytes per node, ~50 per edge (spec.md §4.3).
func (p *Patch) EstimatedBytes() int64 {
	const perNode = 200
	const perEdge = 50
	return int64(len(p.NodesAdd))*perNode + int64(len(p.EdgesAdd))*perEdge
}
