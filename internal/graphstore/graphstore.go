// Package graphstore implements the concurrent in-memory graph: nodes,
// forward/reverse edges, and by-file/by-kind secondary indexes
// (spec.md §4.6). It is the only component that mutates the graph, and
// it does so exclusively through Patch application.
package graphstore

import (
	"sync"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/identity"
	"github.com/codeprism-dev/codeprism/internal/patch"
)

// edgeKey is the (Source, Target, Kind) triple edges are deduplicated
// on (Store.edgeSet), as spec.md §3 requires.
type edgeKey struct {
	Source identity.NodeId
	Target identity.NodeId
	Kind   ast.EdgeKind
}

// Store is the concurrent graph store. Many readers / one writer per
// patch application (spec.md §5): writes are serialized under mu,
// reads take the minimum-span RLock needed to assemble their result.
type Store struct {
	mu sync.RWMutex

	nodes map[identity.NodeId]ast.Node

	forward map[identity.NodeId][]ast.Edge // source -> outgoing edges
	reverse map[identity.NodeId][]ast.Edge // target -> incoming edges
	edgeSet map[edgeKey]struct{}           // dedup index for (src,dst,kind)

	byFile map[string][]identity.NodeId
	byKind map[ast.NodeKind][]identity.NodeId

	// unresolved holds edges recorded before both endpoints existed;
	// re-checked after every patch application (spec.md §3 invariant).
	unresolved []ast.Edge
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		nodes:   make(map[identity.NodeId]ast.Node),
		forward: make(map[identity.NodeId][]ast.Edge),
		reverse: make(map[identity.NodeId][]ast.Edge),
		edgeSet: make(map[edgeKey]struct{}),
		byFile:  make(map[string][]identity.NodeId),
		byKind:  make(map[ast.NodeKind][]identity.NodeId),
	}
}

// Apply applies a patch: deletes precede adds, as fixed by spec.md
// §4.4. Apply is idempotent on node-id collision and deduplicates
// edges on their (source, target, kind) triple.
func (s *Store) Apply(p *patch.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range p.NodesDelete {
		s.removeNodeLocked(id)
	}
	for _, ed := range p.EdgesDelete {
		s.removeEdgeLocked(ast.Edge{Source: ed.Source, Target: ed.Target, Kind: ed.Kind})
	}
	for _, n := range p.NodesAdd {
		s.addNodeLocked(n)
	}
	for _, e := range p.EdgesAdd {
		s.addEdgeLocked(e)
	}
	s.recheckUnresolvedLocked()
}

func (s *Store) addNodeLocked(n ast.Node) {
	if _, exists := s.nodes[n.ID]; exists {
		// idempotent: identical id means identical content (spec.md §3)
		s.nodes[n.ID] = n
		return
	}
	s.nodes[n.ID] = n
	s.byFile[n.FilePath] = append(s.byFile[n.FilePath], n.ID)
	s.byKind[n.Kind] = append(s.byKind[n.Kind], n.ID)
}

func (s *Store) removeNodeLocked(id identity.NodeId) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	delete(s.nodes, id)
	s.byFile[n.FilePath] = removeID(s.byFile[n.FilePath], id)
	s.byKind[n.Kind] = removeID(s.byKind[n.Kind], id)

	// cascade: drop every incident edge (spec.md §4.6 remove_node)
	for _, e := range append([]ast.Edge(nil), s.forward[id]...) {
		s.removeEdgeLocked(e)
	}
	for _, e := range append([]ast.Edge(nil), s.reverse[id]...) {
		s.removeEdgeLocked(e)
	}
	delete(s.forward, id)
	delete(s.reverse, id)
}

func (s *Store) addEdgeLocked(e ast.Edge) {
	key := edgeKey{Source: e.Source, Target: e.Target, Kind: e.Kind}
	if _, dup := s.edgeSet[key]; dup {
		return
	}

	_, srcOK := s.nodes[e.Source]
	_, dstOK := s.nodes[e.Target]
	if !srcOK || !dstOK {
		// record as unresolved; re-checked after the next patch
		// application (spec.md §3 invariant)
		s.unresolved = append(s.unresolved, e)
		return
	}

	s.edgeSet[key] = struct{}{}
	s.forward[e.Source] = append(s.forward[e.Source], e)
	s.reverse[e.Target] = append(s.reverse[e.Target], e)
}

func (s *Store) removeEdgeLocked(e ast.Edge) {
	key := edgeKey{Source: e.Source, Target: e.Target, Kind: e.Kind}
	if _, ok := s.edgeSet[key]; !ok {
		return
	}
	delete(s.edgeSet, key)
	s.forward[e.Source] = removeEdge(s.forward[e.Source], e)
	s.reverse[e.Target] = removeEdge(s.reverse[e.Target], e)
}

func (s *Store) recheckUnresolvedLocked() {
	if len(s.unresolved) == 0 {
		return
	}
	pending := s.unresolved
	s.unresolved = nil
	for _, e := range pending {
		s.addEdgeLocked(e)
	}
}

func removeID(ids []identity.NodeId, target identity.NodeId) []identity.NodeId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func removeEdge(edges []ast.Edge, target ast.Edge) []ast.Edge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// GetNode returns the node for id.
func (s *Store) GetNode(id identity.NodeId) (ast.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// NodesOfKind returns every node of the given kind.
func (s *Store) NodesOfKind(kind ast.NodeKind) []ast.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byKind[kind]
	out := make([]ast.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// NodesInFile returns every node recorded for filePath.
func (s *Store) NodesInFile(filePath string) []ast.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFile[filePath]
	out := make([]ast.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Outgoing returns every edge with id as its source.
func (s *Store) Outgoing(id identity.NodeId) []ast.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ast.Edge(nil), s.forward[id]...)
}

// Incoming returns every edge with id as its target.
func (s *Store) Incoming(id identity.NodeId) []ast.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ast.Edge(nil), s.reverse[id]...)
}

// AllNodes returns a snapshot of every node currently in the store.
// Intended for query-engine full scans (e.g. search_symbols).
func (s *Store) AllNodes() []ast.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ast.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// AllEdges returns a snapshot of every resolved edge currently in the
// store, in no particular order.
func (s *Store) AllEdges() []ast.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ast.Edge, 0, len(s.edgeSet))
	for _, edges := range s.forward {
		out = append(out, edges...)
	}
	return out
}

// NodeCount returns the number of nodes currently in the store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of resolved edges currently in the store.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edgeSet)
}

// UnresolvedCount returns the number of edges still awaiting both
// endpoints to exist in the store.
func (s *Store) UnresolvedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unresolved)
}

// Clear removes every node, edge, and index entry from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[identity.NodeId]ast.Node)
	s.forward = make(map[identity.NodeId][]ast.Edge)
	s.reverse = make(map[identity.NodeId][]ast.Edge)
	s.edgeSet = make(map[edgeKey]struct{})
	s.byFile = make(map[string][]identity.NodeId)
	s.byKind = make(map[ast.NodeKind][]identity.NodeId)
	s.unresolved = nil
}
