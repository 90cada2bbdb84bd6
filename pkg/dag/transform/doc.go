// Package transform provides algorithms over a resolved dependency graph.
//
// # Install Ordering
//
// [InstallOrder] linearizes a closure so that every dependency is installed
// before the objects that depend on it. It is Kahn's algorithm with one
// addition: design objects may reference each other in cycles, so when no
// node is ready the orderer force-breaks the cycle at the remaining node
// with the lexicographically smallest (type, id) and logs a warning. The
// choice depends only on keys, which makes repeated exports of the same
// objects produce byte-identical install orders.
//
//	ord := transform.InstallOrder(closure.Graph, transform.OrderOptions{Logger: logger})
//	for _, d := range ord.Dependencies(closure.Graph) {
//	    // install d
//	}
//
// # Cycle Diagnostics
//
// [FindCycles] reports the strongly connected components of the graph that
// contain a cycle. It is used by "deployer deps --cycles" to show users
// which objects will be force-ordered.
package transform
