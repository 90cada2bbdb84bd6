package render

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/dag/transform"
	"github.com/percussion/deployer/pkg/deps"
)

func cyclic(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New()
	a, _ := g.AddNode(&deps.Dependency{Type: "T", ID: "a", DisplayName: "a", IsIncluded: true,
		Dependencies: []*deps.Dependency{{Type: "T", ID: "b"}}})
	b, _ := g.AddNode(&deps.Dependency{Type: "T", ID: "b", DisplayName: "b",
		Dependencies: []*deps.Dependency{{Type: "T", ID: "a"}, {Type: "T", ID: "skipped"}}})
	if err := g.AddEdge(b, a); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(a, b); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestToDOT(t *testing.T) {
	g := cyclic(t)
	dot := ToDOT(g, Options{})

	for _, want := range []string{
		"digraph G {",
		`"T:a" [label="T:a", penwidth=2, style="rounded,filled,bold"];`,
		`"T:b" [label="T:b"];`,
		`"T:a" -> "T:b";`,
		`"T:b" -> "T:a";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "skipped") {
		t.Error("DOT should omit children outside the graph")
	}
}

func TestToDOTOrdering(t *testing.T) {
	g := cyclic(t)
	ord := transform.InstallOrder(g, transform.OrderOptions{Logger: log.New(io.Discard)})
	dot := ToDOT(g, Options{Ordering: ord, ClusterByType: true})

	if !strings.Contains(dot, `label="1. T:a"`) || !strings.Contains(dot, `label="2. T:b"`) {
		t.Errorf("DOT missing positions:\n%s", dot)
	}
	if !strings.Contains(dot, "dashed") {
		t.Errorf("DOT missing broken marker:\n%s", dot)
	}
	if !strings.Contains(dot, "subgraph cluster_0") {
		t.Errorf("DOT missing cluster:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="116pt" viewBox="0.00 0.00 62.00 116.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 62.00 116.00" width="62" height="116"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("normalizeViewBox(no viewBox) = %s", got)
	}
}
