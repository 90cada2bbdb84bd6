package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/dag/transform"
)

type graph struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Included bool   `json:"included,omitempty"`
	Position *int   `json:"position,omitempty"`
	Broken   bool   `json:"broken,omitempty"`
}

type edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteJSON encodes g as JSON and writes it to w. ord may be nil; when set,
// install positions and broken cycles are included.
func WriteJSON(w io.Writer, g *dag.Graph, ord *transform.Ordering) error {
	pos := make(map[dag.NodeID]int)
	broken := make(map[dag.NodeID]bool)
	if ord != nil {
		for i, id := range ord.Order {
			pos[id] = i
		}
		for _, id := range ord.Broken {
			broken[id] = true
		}
	}

	out := graph{Nodes: make([]node, 0, g.NodeCount()), Edges: make([]edge, 0, g.EdgeCount())}
	for _, n := range g.Nodes() {
		nd := node{
			ID:       n.Key().String(),
			Type:     string(n.Dep.Type),
			Included: n.Dep.IsIncluded,
			Broken:   broken[n.ID],
		}
		if n.Dep.DisplayName != n.Dep.ID {
			nd.Name = n.Dep.DisplayName
		}
		if p, ok := pos[n.ID]; ok {
			nd.Position = &p
		}
		out.Nodes = append(out.Nodes, nd)
		for _, k := range n.Dep.ChildKeys() {
			if g.Lookup(k) != dag.None {
				out.Edges = append(out.Edges, edge{From: nd.ID, To: k.String()})
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes g to a JSON file at path.
func ExportJSON(g *dag.Graph, ord *transform.Ordering, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, g, ord); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
