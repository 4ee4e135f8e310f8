// Package query implements the graph query engine (spec.md §4.7):
// symbol search with ranked results, inheritance-aware filtering,
// reference and dependency traversals, and C3-linearized MRO
// computation. It only reads from a graphstore.Store; it never
// mutates the graph.
package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/errors"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/identity"
)

// DefaultLimit is applied to SearchSymbols when the caller passes 0.
const DefaultLimit = 50

// matchTier ranks how a candidate matched pattern, lower sorts first
// (spec.md §4.7: "exact name match first, then prefix, then substring,
// then regex hit").
type matchTier int

const (
	tierExact matchTier = iota
	tierPrefix
	tierSubstring
	tierRegex
	tierNone
)

// SearchSymbols returns nodes whose name matches pattern, ranked by
// match tier, then NodeKind.Rank(), then file path lexical order.
// pattern is a regular expression; "*" is treated as "match any name".
// When kinds is non-empty, results are restricted to those kinds.
func SearchSymbols(store *graphstore.Store, pattern string, kinds []ast.NodeKind, limit int) ([]ast.Node, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	kindFilter := kindSet(kinds)

	var re *regexp.Regexp
	matchAll := pattern == "*"
	if !matchAll {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.New(errors.KindValidation, errors.SeverityError, "SearchSymbols", err)
		}
		re = compiled
	}

	type scored struct {
		node ast.Node
		tier matchTier
	}
	var matches []scored
	for _, n := range store.AllNodes() {
		if len(kindFilter) > 0 && !kindFilter[n.Kind] {
			continue
		}
		tier := tierNone
		switch {
		case matchAll:
			tier = tierSubstring
		case n.Name == pattern:
			tier = tierExact
		case strings.HasPrefix(n.Name, pattern):
			tier = tierPrefix
		case strings.Contains(n.Name, pattern):
			tier = tierSubstring
		case re != nil && re.MatchString(n.Name):
			tier = tierRegex
		}
		if tier == tierNone {
			continue
		}
		matches = append(matches, scored{node: n, tier: tier})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.node.Kind.Rank() != b.node.Kind.Rank() {
			return a.node.Kind.Rank() < b.node.Kind.Rank()
		}
		return a.node.FilePath < b.node.FilePath
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]ast.Node, len(matches))
	for i, m := range matches {
		out[i] = m.node
	}
	return out, nil
}

// InheritanceFilters restricts SearchSymbolsWithInheritance to classes
// matching all of the given conditions (spec.md §4.7). Empty strings
// mean "no filter on this dimension".
type InheritanceFilters struct {
	InheritsFrom string
	HasMetaclass string
	UsesMixin    string
}

func (f InheritanceFilters) empty() bool {
	return f.InheritsFrom == "" && f.HasMetaclass == "" && f.UsesMixin == ""
}

// SearchSymbolsWithInheritance behaves like SearchSymbols but additionally
// requires each result to satisfy filters. A class matches InheritsFrom(X)
// iff X appears anywhere in its transitive Extends chain.
func SearchSymbolsWithInheritance(store *graphstore.Store, pattern string, kinds []ast.NodeKind, filters InheritanceFilters, limit int) ([]ast.Node, error) {
	matches, err := SearchSymbols(store, pattern, kinds, 0) // unbounded; limit applied after filtering
	if err != nil {
		return nil, err
	}
	if filters.empty() {
		if limit <= 0 {
			limit = DefaultLimit
		}
		if len(matches) > limit {
			matches = matches[:limit]
		}
		return matches, nil
	}

	var out []ast.Node
	for _, n := range matches {
		if !satisfiesInheritanceFilters(store, n, filters) {
			continue
		}
		out = append(out, n)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func satisfiesInheritanceFilters(store *graphstore.Store, n ast.Node, filters InheritanceFilters) bool {
	if filters.InheritsFrom != "" {
		ancestors := transitiveExtends(store, n.ID, map[identity.NodeId]bool{})
		if !containsName(store, ancestors, filters.InheritsFrom) {
			return false
		}
	}
	if filters.HasMetaclass != "" {
		meta, _ := n.Metadata["metaclass"].(string)
		if meta != filters.HasMetaclass {
			return false
		}
	}
	if filters.UsesMixin != "" {
		mixins, _ := n.Metadata["mixins"].([]string)
		found := false
		for _, m := range mixins {
			if m == filters.UsesMixin {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func transitiveExtends(store *graphstore.Store, id identity.NodeId, seen map[identity.NodeId]bool) []identity.NodeId {
	if seen[id] {
		return nil
	}
	seen[id] = true
	var out []identity.NodeId
	for _, e := range store.Outgoing(id) {
		if e.Kind != ast.EdgeExtends {
			continue
		}
		out = append(out, e.Target)
		out = append(out, transitiveExtends(store, e.Target, seen)...)
	}
	return out
}

func containsName(store *graphstore.Store, ids []identity.NodeId, name string) bool {
	for _, id := range ids {
		if n, ok := store.GetNode(id); ok && n.Name == name {
			return true
		}
	}
	return false
}

func kindSet(kinds []ast.NodeKind) map[ast.NodeKind]bool {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[ast.NodeKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// Reference pairs an incoming edge with the node it originates from,
// for find_references (spec.md §4.7).
type Reference struct {
	Edge       ast.Edge
	FromNode   ast.Node
	FilePath   string
	Span       identity.Span
}

// FindReferences returns every edge into nodeID, with the source node
// and its location.
func FindReferences(store *graphstore.Store, nodeID identity.NodeId) []Reference {
	incoming := store.Incoming(nodeID)
	out := make([]Reference, 0, len(incoming))
	for _, e := range incoming {
		from, ok := store.GetNode(e.Source)
		if !ok {
			continue
		}
		out = append(out, Reference{Edge: e, FromNode: from, FilePath: from.FilePath, Span: from.Span})
	}
	return out
}

// DependencyMode selects between a single hop and a full transitive
// closure for FindDependencies (spec.md §4.7).
type DependencyMode int

const (
	DependencyDirect DependencyMode = iota
	DependencyTransitive
)

// FindDependencies returns outgoing edges from nodeID. In Direct mode
// it is one hop; in Transitive mode it is a cycle-safe, deduplicated
// BFS over the whole reachable set. Edges whose target is a Call node
// with an invalid (punctuation-only or empty) name are filtered out.
func FindDependencies(store *graphstore.Store, nodeID identity.NodeId, mode DependencyMode) []ast.Edge {
	if mode == DependencyDirect {
		return filterInvalidCallTargets(store, store.Outgoing(nodeID))
	}

	visited := map[identity.NodeId]bool{nodeID: true}
	queue := []identity.NodeId{nodeID}
	var all []ast.Edge
	seenEdge := map[ast.Edge]bool{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range store.Outgoing(cur) {
			if seenEdge[e] {
				continue
			}
			seenEdge[e] = true
			all = append(all, e)
			if !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return filterInvalidCallTargets(store, all)
}

func filterInvalidCallTargets(store *graphstore.Store, edges []ast.Edge) []ast.Edge {
	out := make([]ast.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Kind == ast.EdgeCalls {
			target, ok := store.GetNode(e.Target)
			if !ok || !isValidSymbolName(target.Name) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func isValidSymbolName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' {
			return true
		}
	}
	return false
}

// InheritanceInfo is the result of get_inheritance_info (spec.md §4.7).
type InheritanceInfo struct {
	Class             ast.Node
	Bases             []ast.Node
	Subclasses        []ast.Node
	Mixins            []string
	Metaclass         string
	DynamicAttributes []string
	MRO               []ast.Node
	MROConsistent     bool
}

// GetInheritanceInfo computes base classes, subclasses, mixins,
// metaclass, dynamic attributes, and the C3-linearized MRO for a class.
func GetInheritanceInfo(store *graphstore.Store, classNodeID identity.NodeId) (InheritanceInfo, bool) {
	class, ok := store.GetNode(classNodeID)
	if !ok {
		return InheritanceInfo{}, false
	}

	info := InheritanceInfo{Class: class}
	for _, e := range store.Outgoing(classNodeID) {
		if e.Kind == ast.EdgeExtends {
			if base, ok := store.GetNode(e.Target); ok {
				info.Bases = append(info.Bases, base)
			}
		}
	}
	for _, e := range store.Incoming(classNodeID) {
		if e.Kind == ast.EdgeExtends {
			if sub, ok := store.GetNode(e.Source); ok {
				info.Subclasses = append(info.Subclasses, sub)
			}
		}
	}
	if mixins, ok := class.Metadata["mixins"].([]string); ok {
		info.Mixins = mixins
	}
	if meta, ok := class.Metadata["metaclass"].(string); ok {
		info.Metaclass = meta
	}
	if attrs, ok := class.Metadata["dynamic_attributes"].([]string); ok {
		info.DynamicAttributes = attrs
	}

	mro, consistent := computeMRO(store, classNodeID, map[identity.NodeId]bool{})
	info.MRO = mro
	info.MROConsistent = consistent
	return info, true
}

// computeMRO implements C3 linearization (spec.md §4.7):
// MRO(C) = C + merge(MRO(P1), ..., MRO(Pn), [P1..Pn])
// where merge repeatedly takes the first head of any list that does
// not appear in the tail of any other list. Cyclic inheritance is
// detected via the visiting set and reported as inconsistent rather
// than looping forever (spec.md invariant 6).
func computeMRO(store *graphstore.Store, id identity.NodeId, visiting map[identity.NodeId]bool) ([]ast.Node, bool) {
	n, ok := store.GetNode(id)
	if !ok {
		return nil, true
	}
	if visiting[id] {
		return []ast.Node{n}, false // cycle: partial result, flagged inconsistent
	}
	visiting[id] = true
	defer delete(visiting, id)

	var bases []identity.NodeId
	for _, e := range store.Outgoing(id) {
		if e.Kind == ast.EdgeExtends {
			bases = append(bases, e.Target)
		}
	}
	if len(bases) == 0 {
		return []ast.Node{n}, true
	}

	var sequences [][]ast.Node
	consistent := true
	for _, b := range bases {
		mro, ok := computeMRO(store, b, visiting)
		if !ok {
			consistent = false
		}
		sequences = append(sequences, mro)
	}
	var baseOrder []ast.Node
	for _, b := range bases {
		if bn, ok := store.GetNode(b); ok {
			baseOrder = append(baseOrder, bn)
		}
	}
	sequences = append(sequences, baseOrder)

	merged, ok := c3Merge(sequences)
	if !ok {
		consistent = false
	}
	return append([]ast.Node{n}, merged...), consistent
}

// c3Merge performs the C3 merge step. Returns false (inconsistent) when
// no valid head exists and the remaining partial merge is returned.
func c3Merge(sequences [][]ast.Node) ([]ast.Node, bool) {
	var result []ast.Node
	seqs := make([][]ast.Node, 0, len(sequences))
	for _, s := range sequences {
		if len(s) > 0 {
			seqs = append(seqs, append([]ast.Node(nil), s...))
		}
	}

	for len(seqs) > 0 {
		var head *ast.Node
		for _, s := range seqs {
			candidate := s[0]
			if !appearsInAnyTail(seqs, candidate.ID) {
				head = &candidate
				break
			}
		}
		if head == nil {
			return result, false // inconsistent linearization
		}
		result = append(result, *head)
		seqs = removeHeadEverywhere(seqs, head.ID)
	}
	return result, true
}

func appearsInAnyTail(seqs [][]ast.Node, id identity.NodeId) bool {
	for _, s := range seqs {
		for _, n := range s[1:] {
			if n.ID == id {
				return true
			}
		}
	}
	return false
}

func removeHeadEverywhere(seqs [][]ast.Node, id identity.NodeId) [][]ast.Node {
	var out [][]ast.Node
	for _, s := range seqs {
		if len(s) > 0 && s[0].ID == id {
			s = s[1:]
		}
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}
