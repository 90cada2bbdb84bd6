package transform

import (
	"slices"

	"github.com/percussion/deployer/pkg/dag"
)

// FindCycles returns the cyclic parts of g: every strongly connected
// component with more than one node, plus single nodes that depend on
// themselves.
//
// Nodes inside a component are sorted by key and components are sorted by
// their first key, so the output is stable for a given graph.
func FindCycles(g *dag.Graph) [][]dag.NodeID {
	var result [][]dag.NodeID
	comps, _ := components(g, nil)
	for _, comp := range comps {
		if len(comp) > 1 || slices.Contains(g.Children(comp[0]), comp[0]) {
			result = append(result, comp)
		}
	}

	byKey := keyOrder(g)
	for _, comp := range result {
		slices.SortFunc(comp, byKey)
	}
	slices.SortFunc(result, func(a, b []dag.NodeID) int { return byKey(a[0], b[0]) })
	return result
}

func keyOrder(g *dag.Graph) func(a, b dag.NodeID) int {
	return func(a, b dag.NodeID) int {
		na, _ := g.Node(a)
		nb, _ := g.Node(b)
		return na.Key().Compare(nb.Key())
	}
}

// components returns the strongly connected components of the subgraph
// induced by the nodes for which keep returns true (all nodes if keep is
// nil), and for every node the index of its component, or -1 if it was not
// kept. Components come out dependencies first: a component is returned
// before any component that depends on it.
//
// This is Tarjan's algorithm with an explicit stack.
func components(g *dag.Graph, keep func(dag.NodeID) bool) ([][]dag.NodeID, []int) {
	n := g.NodeCount()
	if keep == nil {
		keep = func(dag.NodeID) bool { return true }
	}
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	of := make([]int, n)
	for i := range index {
		index[i] = -1
		of[i] = -1
	}

	var (
		next   int
		stack  []dag.NodeID
		result [][]dag.NodeID
	)

	type frame struct {
		id   dag.NodeID
		edge int
	}

	visit := func(v dag.NodeID) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
	}

	for start := range n {
		if index[start] != -1 || !keep(dag.NodeID(start)) {
			continue
		}
		work := []frame{{id: dag.NodeID(start)}}
		visit(dag.NodeID(start))

		for len(work) > 0 {
			top := &work[len(work)-1]
			kids := g.Children(top.id)
			if top.edge < len(kids) {
				c := kids[top.edge]
				top.edge++
				switch {
				case !keep(c):
				case index[c] == -1:
					visit(c)
					work = append(work, frame{id: c})
				case onStack[c]:
					low[top.id] = min(low[top.id], index[c])
				}
				continue
			}

			v := top.id
			work = work[:len(work)-1]
			if len(work) > 0 {
				p := work[len(work)-1].id
				low[p] = min(low[p], low[v])
			}
			if low[v] != index[v] {
				continue
			}

			var comp []dag.NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				of[w] = len(result)
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			result = append(result, comp)
		}
	}
	return result, of
}
