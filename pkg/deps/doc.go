// Package deps defines dependencies, the per-type handler contract and the
// handler registry.
//
// # Overview
//
// A deployer package is a bundle of interdependent design objects: content
// types, templates, workflows, roles, keywords and so on. Each object is a
// [Dependency] identified by a [Key], the pair (type, id). What an object
// depends on is only known to the code that understands its type, so every
// type is served by a [Handler]:
//
//   - [Handler.Exists] checks existence without failing for "not found"
//   - [Handler.Resolve] loads one object with its direct children
//   - [Handler.EnumerateAll] lazily lists every object of the type
//
// Handlers may additionally implement [Exporter] (produce the serialized
// payload and data files written to an archive) and [Installer] (apply a
// payload on the target system).
//
// # Manager
//
// [Manager] is the handler registry. It is built once from a dependency map
// ([depmap.Map]) and a [Catalog] of handler factories, and is immutable
// afterwards, so it can be shared by any number of concurrent jobs:
//
//	m, err := depmap.ParseFile("depmap.toml", catalog.Has)
//	mgr, err := deps.NewManager(m, catalog)
//	h, ok := mgr.Handler("Keyword")
//
// # Authorization
//
// Every handler call receives an opaque [AuthContext]. The engine never looks
// inside it; handlers decide whether to grant access.
//
// [depmap.Map]: github.com/percussion/deployer/pkg/depmap.Map
package deps
