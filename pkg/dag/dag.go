package dag

import (
	"errors"
	"slices"

	"github.com/percussion/deployer/pkg/deps"
)

var (
	// ErrNilDependency is returned by [Graph.AddNode] for a nil dependency.
	ErrNilDependency = errors.New("dependency must not be nil")

	// ErrDuplicateNode is returned by [Graph.AddNode] when a node with the
	// same (type, id) already exists. Keys are unique within a graph.
	ErrDuplicateNode = errors.New("duplicate dependency node")

	// ErrUnknownNode is returned by [Graph.AddEdge] when either endpoint is
	// not a node of the graph.
	ErrUnknownNode = errors.New("unknown node")
)

// NodeID indexes a node in the graph's arena. IDs are dense, start at 0 and
// follow insertion order.
type NodeID int

// None is the NodeID returned when a lookup fails.
const None NodeID = -1

// Node is a vertex of the graph. Dep is the resolved dependency; its Key is
// the node's identity.
type Node struct {
	ID  NodeID
	Dep *deps.Dependency
}

// Key returns the node's (type, id).
func (n *Node) Key() deps.Key { return n.Dep.Key() }

// Graph is a dependency graph whose nodes live in an arena indexed by
// [NodeID]. Edges point from a child (a dependency) to a parent (the object
// that depends on it), so cycles are ordinary edges and never reference
// cycles.
//
// The zero value is not usable - use New. Graph is not safe for concurrent
// use without external synchronization.
type Graph struct {
	nodes    []*Node
	index    map[deps.Key]NodeID
	children [][]NodeID // node -> the nodes it depends on
	parents  [][]NodeID // node -> the nodes depending on it
	edges    int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[deps.Key]NodeID)}
}

// AddNode adds a dependency as a new node and returns its ID.
// Returns ErrDuplicateNode if a node with the same key exists.
func (g *Graph) AddNode(d *deps.Dependency) (NodeID, error) {
	if d == nil {
		return None, ErrNilDependency
	}
	k := d.Key()
	if _, exists := g.index[k]; exists {
		return None, ErrDuplicateNode
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{ID: id, Dep: d})
	g.children = append(g.children, nil)
	g.parents = append(g.parents, nil)
	g.index[k] = id
	return id, nil
}

// AddEdge records that parent depends on child. Duplicate edges are ignored.
// A node may depend on itself.
func (g *Graph) AddEdge(child, parent NodeID) error {
	if !g.valid(child) || !g.valid(parent) {
		return ErrUnknownNode
	}
	if slices.Contains(g.children[parent], child) {
		return nil
	}
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
	g.edges++
	return nil
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

// Lookup returns the node ID for a key, or None.
func (g *Graph) Lookup(k deps.Key) NodeID {
	if id, ok := g.index[k]; ok {
		return id
	}
	return None
}

// Node returns the node with the given ID and true, or nil and false.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	if !g.valid(id) {
		return nil, false
	}
	return g.nodes[id], true
}

// NodeByKey returns the node for a key and true, or nil and false.
func (g *Graph) NodeByKey(k deps.Key) (*Node, bool) {
	return g.Node(g.Lookup(k))
}

// Nodes returns all nodes in insertion order.
// The returned slice is a copy; the nodes are shared with the graph.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Keys returns all node keys in insertion order.
func (g *Graph) Keys() []deps.Key {
	keys := make([]deps.Key, len(g.nodes))
	for i, n := range g.nodes {
		keys[i] = n.Key()
	}
	return keys
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Children returns the nodes id depends on, in the order the edges were
// added. The slice should be treated as read-only.
func (g *Graph) Children(id NodeID) []NodeID {
	if !g.valid(id) {
		return nil
	}
	return g.children[id]
}

// Parents returns the nodes that depend on id. The slice should be treated
// as read-only.
func (g *Graph) Parents(id NodeID) []NodeID {
	if !g.valid(id) {
		return nil
	}
	return g.parents[id]
}

// InDegree returns the number of nodes id depends on.
func (g *Graph) InDegree(id NodeID) int { return len(g.Children(id)) }

// OutDegree returns the number of nodes depending on id.
func (g *Graph) OutDegree(id NodeID) int { return len(g.Parents(id)) }

// Roots returns the nodes that were selected explicitly (IsIncluded), in
// insertion order.
func (g *Graph) Roots() []NodeID {
	var roots []NodeID
	for _, n := range g.nodes {
		if n.Dep.IsIncluded {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Leaves returns the nodes that depend on nothing, in insertion order.
func (g *Graph) Leaves() []NodeID {
	var leaves []NodeID
	for i := range g.nodes {
		if len(g.children[i]) == 0 {
			leaves = append(leaves, NodeID(i))
		}
	}
	return leaves
}

// HasCycle reports whether the graph contains a directed cycle, including
// self edges.
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.nodes))
	type frame struct {
		id   NodeID
		next int
	}

	for start := range g.nodes {
		if color[start] != white {
			continue
		}
		stack := []frame{{id: NodeID(start)}}
		color[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			kids := g.children[top.id]
			if top.next == len(kids) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := kids[top.next]
			top.next++
			switch color[child] {
			case gray:
				return true
			case white:
				color[child] = gray
				stack = append(stack, frame{id: child})
			}
		}
	}
	return false
}

// Clone returns a copy of the graph structure. Dependencies are shared.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:    make([]*Node, len(g.nodes)),
		index:    make(map[deps.Key]NodeID, len(g.index)),
		children: make([][]NodeID, len(g.children)),
		parents:  make([][]NodeID, len(g.parents)),
		edges:    g.edges,
	}
	for i, n := range g.nodes {
		c.nodes[i] = &Node{ID: n.ID, Dep: n.Dep}
		c.children[i] = slices.Clone(g.children[i])
		c.parents[i] = slices.Clone(g.parents[i])
	}
	for k, v := range g.index {
		c.index[k] = v
	}
	return c
}
