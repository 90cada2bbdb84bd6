// Package dag provides the dependency graph produced by closure resolution.
//
// # Overview
//
// Nodes are stored in an arena and addressed by a dense integer [NodeID];
// a map from (type, id) to NodeID guarantees that each dependency appears
// once. Edges point from a child to a parent ("parent depends on child"),
// which is the direction install ordering follows: children are installed
// first.
//
// Despite the package name the graph may contain cycles. Design objects can
// reference each other mutually or themselves; closure resolution tolerates
// this and install ordering breaks such cycles deterministically (see
// [transform.InstallOrder]).
//
// # Basic Usage
//
//	g := dag.New()
//	ct, _ := g.AddNode(&deps.Dependency{Type: "ContentType", ID: "article"})
//	kw, _ := g.AddNode(&deps.Dependency{Type: "Keyword", ID: "topics"})
//	_ = g.AddEdge(kw, ct) // the content type depends on the keyword
//
// # Concurrency
//
// Graph is not safe for concurrent modification. Each job builds and owns
// its own graph.
//
// [transform.InstallOrder]: github.com/percussion/deployer/pkg/dag/transform.InstallOrder
package dag
