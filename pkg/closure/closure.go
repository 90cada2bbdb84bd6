// Package closure computes the transitive dependency closure of a set of
// selected design objects.
//
// Starting from the roots a user selected, [Resolver] asks each object's
// handler for its direct children and keeps expanding until every reachable
// object has been resolved exactly once. The result is a [dag.Graph] whose
// edges point from each dependency to the objects that depend on it, ready
// for install ordering.
//
// Failures are classified the way jobs report them: a root that cannot be
// resolved fails the whole resolution, while a transitive dependency that
// has disappeared becomes a [Warning] and is left out of the graph.
// Authorization, configuration and cancellation errors are always fatal.
package closure

import (
	"slices"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/deps"
)

// Warning records a transitive dependency that was skipped.
type Warning struct {
	Key deps.Key
	Err error
}

// Error implements the error interface.
func (w Warning) Error() string { return w.Key.String() + ": " + w.Err.Error() }

// Closure is the result of resolution.
type Closure struct {
	// Graph holds one node per resolved dependency, in resolution order.
	Graph *dag.Graph

	// Roots are the explicitly selected keys, deduplicated, in input order.
	Roots []deps.Key

	// Warnings lists the transitive dependencies that could not be resolved.
	Warnings []Warning
}

// Keys returns the keys of all resolved dependencies in resolution order.
func (c *Closure) Keys() []deps.Key { return c.Graph.Keys() }

// Len returns the number of resolved dependencies.
func (c *Closure) Len() int { return c.Graph.NodeCount() }

// Contains reports whether k was resolved into the closure.
func (c *Closure) Contains(k deps.Key) bool { return c.Graph.Lookup(k) != dag.None }

// Skipped reports whether k was referenced but skipped with a warning.
func (c *Closure) Skipped(k deps.Key) bool {
	return slices.ContainsFunc(c.Warnings, func(w Warning) bool { return w.Key == k })
}
