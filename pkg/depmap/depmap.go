// Package depmap holds the static description of every known dependency type.
//
// # Overview
//
// A dependency map is loaded once per process from a configuration document
// and never changes afterwards. Each [Def] names a dependency type, the
// handler reference used to build its handler, the types it may appear under
// (parents), and whether it supports id types.
//
// # Document Formats
//
// TOML documents use an array of tables:
//
//	[[dependency]]
//	type = "Keyword"
//	handler = "keyword"
//	parents = ["ContentType"]
//	supports-id-types = false
//
// HCL documents use labelled blocks:
//
//	dependency "Keyword" {
//	  handler = "keyword"
//	  parents = ["ContentType"]
//	}
//
// # Validation
//
// Parsing fails with an [errors.ErrCodeConfiguration] error when a type is
// defined twice, a handler reference cannot be resolved, or a parent type is
// not itself defined. These failures are fatal for the process.
//
// # Concurrency
//
// A [Map] is immutable and safe for concurrent reads. [Loader] performs the
// one-time load under a lock; reads after the load never block.
//
// [errors.ErrCodeConfiguration]: github.com/percussion/deployer/pkg/errors.ErrCodeConfiguration
package depmap

import (
	"slices"
)

// Def describes one dependency type.
type Def struct {
	Type            string   // Dependency type name (e.g. "Keyword")
	Handler         string   // Handler reference resolved through a handler catalog
	Parents         []string // Types this type may appear under
	SupportsIDTypes bool     // Whether ids of this type can be id-typed (translated)
}

// HasParent reports whether t is a declared parent of the def.
func (d Def) HasParent(t string) bool {
	return slices.Contains(d.Parents, t)
}

// Map is an ordered, immutable collection of defs keyed by type.
// The zero value is an empty map.
type Map struct {
	defs  []Def
	index map[string]int
}

// newMap builds a map from already validated defs.
func newMap(defs []Def) *Map {
	m := &Map{defs: make([]Def, len(defs)), index: make(map[string]int, len(defs))}
	for i, d := range defs {
		d.Parents = slices.Clone(d.Parents)
		m.defs[i] = d
		m.index[d.Type] = i
	}
	return m
}

// Def returns the def for the given type.
func (m *Map) Def(t string) (Def, bool) {
	if m == nil {
		return Def{}, false
	}
	i, ok := m.index[t]
	if !ok {
		return Def{}, false
	}
	return m.defs[i], true
}

// Defs returns all defs in document order. The slice is a copy.
func (m *Map) Defs() []Def {
	if m == nil {
		return nil
	}
	return slices.Clone(m.defs)
}

// Types returns all type names in document order.
func (m *Map) Types() []string {
	if m == nil {
		return nil
	}
	types := make([]string, len(m.defs))
	for i, d := range m.defs {
		types[i] = d.Type
	}
	return types
}

// Len returns the number of defs.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.defs)
}

// Children returns the types that declare t as a parent, in document order.
func (m *Map) Children(t string) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, d := range m.defs {
		if d.HasParent(t) {
			out = append(out, d.Type)
		}
	}
	return out
}
