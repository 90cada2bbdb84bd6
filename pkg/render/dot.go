package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/dag/transform"
)

// Options configures diagram generation.
type Options struct {
	// Ordering, when set, numbers nodes by install position and marks
	// forced cycle breaks.
	Ordering *transform.Ordering

	// ClusterByType groups nodes of the same type into a labelled cluster.
	ClusterByType bool
}

// ToDOT converts g to Graphviz DOT source. Output is deterministic: nodes
// follow graph insertion order and edges follow handler child order.
func ToDOT(g *dag.Graph, opts Options) string {
	pos := make(map[dag.NodeID]int)
	broken := make(map[dag.NodeID]bool)
	if opts.Ordering != nil {
		for i, id := range opts.Ordering.Order {
			pos[id] = i + 1
		}
		for _, id := range opts.Ordering.Broken {
			broken[id] = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	writeNode := func(indent string, n *dag.Node) {
		label := n.Dep.String()
		if p, ok := pos[n.ID]; ok {
			label = fmt.Sprintf("%d. %s", p, label)
		}
		fmt.Fprintf(&buf, "%s%q [%s];\n", indent, n.Key().String(), strings.Join(attrs(n, label, broken[n.ID]), ", "))
	}

	if opts.ClusterByType {
		var types []string
		byType := make(map[string][]*dag.Node)
		for _, n := range g.Nodes() {
			t := string(n.Dep.Type)
			if _, ok := byType[t]; !ok {
				types = append(types, t)
			}
			byType[t] = append(byType[t], n)
		}
		for i, t := range types {
			fmt.Fprintf(&buf, "  subgraph cluster_%d {\n    label=%q;\n    style=dotted;\n", i, t)
			for _, n := range byType[t] {
				writeNode("    ", n)
			}
			buf.WriteString("  }\n")
		}
	} else {
		for _, n := range g.Nodes() {
			writeNode("  ", n)
		}
	}

	buf.WriteString("\n")
	for _, n := range g.Nodes() {
		for _, k := range n.Dep.ChildKeys() {
			if g.Lookup(k) != dag.None {
				fmt.Fprintf(&buf, "  %q -> %q;\n", n.Key().String(), k.String())
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func attrs(n *dag.Node, label string, broken bool) []string {
	out := []string{fmt.Sprintf("label=%q", label)}
	style := "rounded,filled"
	if n.Dep.IsIncluded {
		style += ",bold"
		out = append(out, "penwidth=2")
	}
	if broken {
		style += ",dashed"
		out = append(out, "fillcolor=lightgrey")
	}
	if style != "rounded,filled" {
		out = append(out, fmt.Sprintf("style=%q", style))
	}
	return out
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-sized svg element with one
// whose width and height match the view box, so the image scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
