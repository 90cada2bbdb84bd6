// Package render draws dependency graphs as node-link diagrams.
//
// [ToDOT] produces Graphviz DOT source; [RenderSVG] lays it out and renders
// it in-process with [github.com/goccy/go-graphviz].
//
//	dot := render.ToDOT(closure.Graph, render.Options{Ordering: ord})
//	svg, err := render.RenderSVG(ctx, dot)
//
// Edges point from an object to the objects it depends on. Objects selected
// explicitly for export are drawn bold; objects where the install ordering
// broke a cycle are drawn dashed. With an ordering, each label is prefixed
// with the object's install position.
package render
