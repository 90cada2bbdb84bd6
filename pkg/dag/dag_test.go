package dag

import (
	"errors"
	"slices"
	"testing"

	"github.com/percussion/deployer/pkg/deps"
)

func dep(t deps.Type, id string) *deps.Dependency {
	return &deps.Dependency{Type: t, ID: id}
}

func mustAdd(t *testing.T, g *Graph, d *deps.Dependency) NodeID {
	t.Helper()
	id, err := g.AddNode(d)
	if err != nil {
		t.Fatalf("AddNode(%v) error: %v", d, err)
	}
	return id
}

func TestAddNode(t *testing.T) {
	g := New()
	a := mustAdd(t, g, dep("Keyword", "a"))
	b := mustAdd(t, g, dep("Keyword", "b"))
	if a != 0 || b != 1 {
		t.Errorf("ids = %d, %d, want 0, 1", a, b)
	}

	if _, err := g.AddNode(dep("Keyword", "a")); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("duplicate AddNode error = %v, want ErrDuplicateNode", err)
	}
	if _, err := g.AddNode(nil); !errors.Is(err, ErrNilDependency) {
		t.Errorf("nil AddNode error = %v, want ErrNilDependency", err)
	}

	// same id under a different type is a different node
	mustAdd(t, g, dep("Role", "a"))
	if g.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", g.NodeCount())
	}
}

func TestAddEdge(t *testing.T) {
	g := New()
	p := mustAdd(t, g, dep("ContentType", "p"))
	c := mustAdd(t, g, dep("Keyword", "c"))

	if err := g.AddEdge(c, p); err != nil {
		t.Fatalf("AddEdge() error: %v", err)
	}
	if err := g.AddEdge(c, p); err != nil {
		t.Fatalf("duplicate AddEdge() error: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	if !slices.Equal(g.Children(p), []NodeID{c}) {
		t.Errorf("Children(p) = %v", g.Children(p))
	}
	if !slices.Equal(g.Parents(c), []NodeID{p}) {
		t.Errorf("Parents(c) = %v", g.Parents(c))
	}
	if g.InDegree(p) != 1 || g.OutDegree(c) != 1 {
		t.Errorf("degrees = %d, %d", g.InDegree(p), g.OutDegree(c))
	}
	if err := g.AddEdge(c, 7); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("AddEdge(unknown) error = %v, want ErrUnknownNode", err)
	}
	if g.Children(None) != nil {
		t.Error("Children(None) should be nil")
	}
}

func TestLookup(t *testing.T) {
	g := New()
	id := mustAdd(t, g, dep("Workflow", "std"))

	if got := g.Lookup(deps.K("Workflow", "std")); got != id {
		t.Errorf("Lookup() = %d, want %d", got, id)
	}
	if got := g.Lookup(deps.K("Workflow", "other")); got != None {
		t.Errorf("Lookup(missing) = %d, want None", got)
	}
	n, ok := g.NodeByKey(deps.K("Workflow", "std"))
	if !ok || n.Dep.ID != "std" {
		t.Errorf("NodeByKey() = %v, %v", n, ok)
	}
	if _, ok := g.Node(None); ok {
		t.Error("Node(None) should not be found")
	}
}

func TestRootsAndLeaves(t *testing.T) {
	g := New()
	root := &deps.Dependency{Type: "ContentType", ID: "r", IsIncluded: true}
	r := mustAdd(t, g, root)
	a := mustAdd(t, g, dep("Keyword", "a"))
	b := mustAdd(t, g, dep("Keyword", "b"))
	_ = g.AddEdge(a, r)
	_ = g.AddEdge(b, a)

	if !slices.Equal(g.Roots(), []NodeID{r}) {
		t.Errorf("Roots() = %v", g.Roots())
	}
	if !slices.Equal(g.Leaves(), []NodeID{b}) {
		t.Errorf("Leaves() = %v", g.Leaves())
	}
	want := []deps.Key{deps.K("ContentType", "r"), deps.K("Keyword", "a"), deps.K("Keyword", "b")}
	if !slices.Equal(g.Keys(), want) {
		t.Errorf("Keys() = %v", g.Keys())
	}
}

func TestHasCycle(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]int
		want  bool
	}{
		{"empty", nil, false},
		{"chain", [][2]int{{1, 0}, {2, 1}}, false},
		{"diamond", [][2]int{{1, 0}, {2, 0}, {3, 1}, {3, 2}}, false},
		{"self edge", [][2]int{{1, 1}}, true},
		{"two cycle", [][2]int{{0, 1}, {1, 0}}, true},
		{"three cycle", [][2]int{{1, 0}, {2, 1}, {0, 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, id := range []string{"a", "b", "c", "d"} {
				mustAdd(t, g, dep("T", id))
			}
			for _, e := range tt.edges {
				if err := g.AddEdge(NodeID(e[0]), NodeID(e[1])); err != nil {
					t.Fatal(err)
				}
			}
			if got := g.HasCycle(); got != tt.want {
				t.Errorf("HasCycle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClone(t *testing.T) {
	g := New()
	a := mustAdd(t, g, dep("T", "a"))
	b := mustAdd(t, g, dep("T", "b"))
	_ = g.AddEdge(b, a)

	c := g.Clone()
	cid := mustAdd(t, c, dep("T", "c"))
	_ = c.AddEdge(cid, a)

	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Errorf("original modified: %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
	if c.NodeCount() != 3 || c.EdgeCount() != 2 {
		t.Errorf("clone: %d nodes, %d edges", c.NodeCount(), c.EdgeCount())
	}
	if len(g.Children(a)) != 1 {
		t.Errorf("original children changed: %v", g.Children(a))
	}
}
