package transform

import (
	"slices"

	"github.com/charmbracelet/log"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/deps"
)

// OrderOptions configures [InstallOrder].
type OrderOptions struct {
	// Logger receives a warning for every forced cycle break.
	// Defaults to log.Default().
	Logger *log.Logger
}

// Ordering is the result of [InstallOrder].
type Ordering struct {
	// Order is a permutation of all graph nodes, dependencies first.
	Order []dag.NodeID

	// Broken lists the nodes emitted while some of their dependencies were
	// still unordered, in the order the breaks happened.
	Broken []dag.NodeID
}

// Keys returns the ordered node keys.
func (o *Ordering) Keys(g *dag.Graph) []deps.Key {
	keys := make([]deps.Key, len(o.Order))
	for i, id := range o.Order {
		n, _ := g.Node(id)
		keys[i] = n.Key()
	}
	return keys
}

// Dependencies returns the ordered dependencies.
func (o *Ordering) Dependencies(g *dag.Graph) []*deps.Dependency {
	out := make([]*deps.Dependency, len(o.Order))
	for i, id := range o.Order {
		n, _ := g.Node(id)
		out[i] = n.Dep
	}
	return out
}

// InstallOrder computes a linear install order for g in which every node
// appears after the nodes it depends on.
//
// It runs Kahn's algorithm over the child→parent edges. Ready nodes are
// emitted first-in first-out, seeded in NodeID order. When nodes remain but
// none is ready, the graph contains a cycle. The orderer then condenses the
// remaining nodes into strongly connected components and takes the sink
// components, the cycles that no longer wait on anything outside themselves.
// From each it picks the node with the lexicographically smallest (type, id)
// key. The picks are emitted in key order, one each time the queue runs dry,
// before the remaining graph is condensed again. Every forced emission
// releases its dependents and logs a "forced cycle break" warning. Self edges
// never block a node since a node may appear at its own position.
//
// InstallOrder always terminates and never modifies g. For the same graph it
// returns the same ordering.
func InstallOrder(g *dag.Graph, opts OrderOptions) *Ordering {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	n := g.NodeCount()
	pending := make([]int, n)
	emitted := make([]bool, n)
	for i := range n {
		for _, c := range g.Children(dag.NodeID(i)) {
			if c != dag.NodeID(i) {
				pending[i]++
			}
		}
	}

	queue := make([]dag.NodeID, 0, n)
	for i := range n {
		if pending[i] == 0 {
			queue = append(queue, dag.NodeID(i))
		}
	}

	result := &Ordering{Order: make([]dag.NodeID, 0, n)}
	emit := func(id dag.NodeID) {
		emitted[id] = true
		result.Order = append(result.Order, id)
		for _, p := range g.Parents(id) {
			if p == id || emitted[p] {
				continue
			}
			pending[p]--
			if pending[p] == 0 {
				queue = append(queue, p)
			}
		}
	}

	// Sink components never wait on each other, so a pick stays stuck until
	// it is broken no matter how the others drain.
	var breaks []dag.NodeID
	for len(result.Order) < n {
		if len(queue) == 0 {
			for len(breaks) > 0 && emitted[breaks[0]] {
				breaks = breaks[1:]
			}
			if len(breaks) == 0 {
				breaks = breakPoints(g, emitted)
			}
			id := breaks[0]
			breaks = breaks[1:]
			node, _ := g.Node(id)
			logger.Warn("forced cycle break", "type", node.Dep.Type, "id", node.Dep.ID, "pending", pending[id])
			result.Broken = append(result.Broken, id)
			emit(id)
			continue
		}
		id := queue[0]
		queue = queue[1:]
		if emitted[id] {
			continue
		}
		emit(id)
	}
	return result
}

// breakPoints returns, in key order, the smallest-key node of every
// remaining component that waits on nothing outside itself. There is at
// least one while any node remains.
func breakPoints(g *dag.Graph, emitted []bool) []dag.NodeID {
	comps, of := components(g, func(id dag.NodeID) bool { return !emitted[id] })
	byKey := keyOrder(g)

	var out []dag.NodeID
	for ci, comp := range comps {
		if !waitsOutside(g, comp, ci, of) {
			out = append(out, slices.MinFunc(comp, byKey))
		}
	}
	slices.SortFunc(out, byKey)
	return out
}

// waitsOutside reports whether a node of component ci depends on a remaining
// node of another component. of maps nodes to components, -1 for nodes
// already emitted.
func waitsOutside(g *dag.Graph, comp []dag.NodeID, ci int, of []int) bool {
	for _, id := range comp {
		for _, c := range g.Children(id) {
			if of[c] >= 0 && of[c] != ci {
				return true
			}
		}
	}
	return false
}
