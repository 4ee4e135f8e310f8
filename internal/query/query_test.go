package query

import (
	"testing"

	"github.com/codeprism-dev/codeprism/internal/ast"
	"github.com/codeprism-dev/codeprism/internal/graphstore"
	"github.com/codeprism-dev/codeprism/internal/identity"
	"github.com/codeprism-dev/codeprism/internal/patch"
)

func mkNode(kind ast.NodeKind, name, file string) ast.Node {
	return ast.NewNode("repo", kind, name, "python", file, identity.Span{StartLine: 1, EndLine: 1}, "", nil)
}

// TestScenarioA grounds spec.md §8 Scenario A.
func TestScenarioASearchAndInheritanceAndReferences(t *testing.T) {
	store := graphstore.New()
	foo := mkNode(ast.KindClass, "Foo", "a.py")
	bar := mkNode(ast.KindClass, "Bar", "b.py")

	p := patch.New("repo", "sha1")
	p.AddNode(foo)
	p.AddNode(bar)
	p.AddEdge(ast.Edge{Source: bar.ID, Target: foo.ID, Kind: ast.EdgeExtends})
	store.Apply(p)

	results, err := SearchSymbols(store, "Bar", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Bar" {
		t.Fatalf("expected exactly one Bar match, got %+v", results)
	}

	info, ok := GetInheritanceInfo(store, bar.ID)
	if !ok {
		t.Fatal("expected inheritance info for Bar")
	}
	if len(info.Bases) != 1 || info.Bases[0].Name != "Foo" {
		t.Fatalf("expected base [Foo], got %+v", info.Bases)
	}
	if len(info.MRO) != 2 || info.MRO[0].Name != "Bar" || info.MRO[1].Name != "Foo" {
		t.Fatalf("expected MRO [Bar, Foo], got %+v", info.MRO)
	}
	if !info.MROConsistent {
		t.Fatalf("expected a consistent MRO for simple single inheritance")
	}

	refs := FindReferences(store, foo.ID)
	if len(refs) != 1 || refs[0].Edge.Kind != ast.EdgeExtends || refs[0].FromNode.Name != "Bar" {
		t.Fatalf("expected one Extends reference from Bar, got %+v", refs)
	}
}

func TestSearchSymbolsRankingTiers(t *testing.T) {
	store := graphstore.New()
	exact := mkNode(ast.KindFunction, "run", "a.py")
	prefix := mkNode(ast.KindFunction, "runLoop", "b.py")
	substr := mkNode(ast.KindFunction, "prerunCheck", "c.py")

	p := patch.New("repo", "sha1")
	p.AddNode(exact)
	p.AddNode(prefix)
	p.AddNode(substr)
	store.Apply(p)

	results, err := SearchSymbols(store, "run", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected all 3 to match, got %d", len(results))
	}
	if results[0].Name != "run" || results[1].Name != "runLoop" || results[2].Name != "prerunCheck" {
		t.Fatalf("expected exact < prefix < substring ordering, got %+v", results)
	}
}

func TestSearchSymbolsLimitDefault(t *testing.T) {
	store := graphstore.New()
	p := patch.New("repo", "sha1")
	for i := 0; i < 60; i++ {
		p.AddNode(mkNode(ast.KindFunction, "f", fpath(i)))
	}
	store.Apply(p)

	results, err := SearchSymbols(store, "f", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, len(results))
	}
}

func fpath(i int) string {
	return string(rune('a'+i%26)) + "/" + string(rune('a'+(i/26)%26)) + ".py"
}

func TestMROMultipleInheritanceOrdering(t *testing.T) {
	// D(B, C), B(A), C(A): MRO(D) = [D, B, C, A]
	store := graphstore.New()
	a := mkNode(ast.KindClass, "A", "a.py")
	b := mkNode(ast.KindClass, "B", "b.py")
	c := mkNode(ast.KindClass, "C", "c.py")
	d := mkNode(ast.KindClass, "D", "d.py")

	p := patch.New("repo", "sha1")
	p.AddNode(a)
	p.AddNode(b)
	p.AddNode(c)
	p.AddNode(d)
	p.AddEdge(ast.Edge{Source: b.ID, Target: a.ID, Kind: ast.EdgeExtends})
	p.AddEdge(ast.Edge{Source: c.ID, Target: a.ID, Kind: ast.EdgeExtends})
	p.AddEdge(ast.Edge{Source: d.ID, Target: b.ID, Kind: ast.EdgeExtends})
	p.AddEdge(ast.Edge{Source: d.ID, Target: c.ID, Kind: ast.EdgeExtends})
	store.Apply(p)

	info, ok := GetInheritanceInfo(store, d.ID)
	if !ok {
		t.Fatal("expected inheritance info for D")
	}
	if !info.MROConsistent {
		t.Fatalf("expected consistent MRO")
	}
	var names []string
	for _, n := range info.MRO {
		names = append(names, n.Name)
	}
	want := []string{"D", "B", "C", "A"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestMROCyclicInheritanceFlaggedInconsistent(t *testing.T) {
	store := graphstore.New()
	x := mkNode(ast.KindClass, "X", "x.py")
	y := mkNode(ast.KindClass, "Y", "y.py")

	p := patch.New("repo", "sha1")
	p.AddNode(x)
	p.AddNode(y)
	p.AddEdge(ast.Edge{Source: x.ID, Target: y.ID, Kind: ast.EdgeExtends})
	p.AddEdge(ast.Edge{Source: y.ID, Target: x.ID, Kind: ast.EdgeExtends})
	store.Apply(p)

	info, ok := GetInheritanceInfo(store, x.ID)
	if !ok {
		t.Fatal("expected inheritance info")
	}
	if info.MROConsistent {
		t.Fatalf("expected cyclic inheritance to be flagged inconsistent")
	}
}

func TestFindDependenciesDirectVsTransitive(t *testing.T) {
	store := graphstore.New()
	a := mkNode(ast.KindFunction, "a", "a.py")
	b := mkNode(ast.KindFunction, "b", "b.py")
	c := mkNode(ast.KindFunction, "c", "c.py")

	p := patch.New("repo", "sha1")
	p.AddNode(a)
	p.AddNode(b)
	p.AddNode(c)
	p.AddEdge(ast.Edge{Source: a.ID, Target: b.ID, Kind: ast.EdgeCalls})
	p.AddEdge(ast.Edge{Source: b.ID, Target: c.ID, Kind: ast.EdgeCalls})
	store.Apply(p)

	direct := FindDependencies(store, a.ID, DependencyDirect)
	if len(direct) != 1 || direct[0].Target != b.ID {
		t.Fatalf("expected one direct dependency to b, got %+v", direct)
	}

	transitive := FindDependencies(store, a.ID, DependencyTransitive)
	if len(transitive) != 2 {
		t.Fatalf("expected 2 transitive dependencies (b, c), got %+v", transitive)
	}
}

func TestFindDependenciesFiltersInvalidCallTargets(t *testing.T) {
	store := graphstore.New()
	a := mkNode(ast.KindFunction, "a", "a.py")
	bad := mkNode(ast.KindCall, "!!!", "a.py")

	p := patch.New("repo", "sha1")
	p.AddNode(a)
	p.AddNode(bad)
	p.AddEdge(ast.Edge{Source: a.ID, Target: bad.ID, Kind: ast.EdgeCalls})
	store.Apply(p)

	deps := FindDependencies(store, a.ID, DependencyDirect)
	if len(deps) != 0 {
		t.Fatalf("expected the call to an invalid synthetic name to be filtered out, got %+v", deps)
	}
}

func TestSearchSymbolsWithInheritanceFilter(t *testing.T) {
	store := graphstore.New()
	foo := mkNode(ast.KindClass, "Foo", "a.py")
	bar := mkNode(ast.KindClass, "Bar", "b.py")
	baz := mkNode(ast.KindClass, "Baz", "c.py")

	p := patch.New("repo", "sha1")
	p.AddNode(foo)
	p.AddNode(bar)
	p.AddNode(baz)
	p.AddEdge(ast.Edge{Source: bar.ID, Target: foo.ID, Kind: ast.EdgeExtends})
	store.Apply(p)

	results, err := SearchSymbolsWithInheritance(store, "Ba", nil, InheritanceFilters{InheritsFrom: "Foo"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Bar" {
		t.Fatalf("expected only Bar to match InheritsFrom(Foo), got %+v", results)
	}
}
