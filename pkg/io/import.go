package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/deps"
)

// ReadJSON decodes a JSON graph from r.
//
// ReadJSON returns an error if:
//   - The JSON is malformed
//   - A node id is not a valid "Type:ID" key or disagrees with its "type"
//   - Two nodes share a key
//   - An edge references an unknown node
//
// Cycles are accepted. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*dag.Graph, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	g := dag.New()
	for _, n := range data.Nodes {
		k, err := deps.ParseKey(n.ID)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		if n.Type != "" && n.Type != string(k.Type) {
			return nil, fmt.Errorf("node %s: type %q does not match id", n.ID, n.Type)
		}
		d := &deps.Dependency{Type: k.Type, ID: k.ID, DisplayName: n.Name, IsIncluded: n.Included}
		if d.DisplayName == "" {
			d.DisplayName = k.ID
		}
		if _, err := g.AddNode(d); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, e := range data.Edges {
		from, to := lookup(g, e.From), lookup(g, e.To)
		if from == dag.None || to == dag.None {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, dag.ErrUnknownNode)
		}
		if err := g.AddEdge(to, from); err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
		parent, _ := g.Node(from)
		child, _ := g.Node(to)
		parent.Dep.Dependencies = append(parent.Dep.Dependencies, &deps.Dependency{Type: child.Dep.Type, ID: child.Dep.ID})
	}
	return g, nil
}

func lookup(g *dag.Graph, s string) dag.NodeID {
	k, err := deps.ParseKey(s)
	if err != nil {
		return dag.None
	}
	return g.Lookup(k)
}

// ImportJSON reads a JSON graph file at path.
func ImportJSON(path string) (*dag.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
