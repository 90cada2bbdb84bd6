// Package handlers provides the built-in dependency handlers.
//
// Every handler reads design objects from a [store.Store] and enforces the
// caller's token with [auth.Check] on each operation. They differ only in how
// a reference is looked up:
//   - [Keyword]: by id, falling back to a case-insensitive label match
//   - [Role]: by role name, case-insensitive
//   - [ContentType]: by id, reporting keywords, workflows and templates first
//   - [Generic]: by exact id
//
// [Catalog] maps the handler references used in dependency map documents to
// factories for these handlers.
package handlers

import (
	"context"
	"slices"
	"strings"

	"github.com/percussion/deployer/pkg/depmap"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/store"
)

// Handler references accepted in dependency map documents.
const (
	RefGeneric     = "generic"
	RefKeyword     = "keyword"
	RefRole        = "role"
	RefContentType = "content-type"
)

// Keyword handles keyword objects. Content types often reference keywords by
// label rather than id, so a reference that matches no id is retried against
// the labels of all keywords.
type Keyword struct{ *Generic }

// NewKeyword creates a keyword handler.
func NewKeyword(kind deps.Type, s store.Store) *Keyword {
	k := &Keyword{NewGeneric(kind, s)}
	k.lookup = func(ctx context.Context, id string) (*store.Object, error) {
		return lookupOr(ctx, k.Generic, id, func(o *store.Object) bool {
			return o.Name != "" && strings.EqualFold(o.Name, id)
		})
	}
	return k
}

// Role handles role objects, which are identified by name. Role names are
// case-insensitive.
type Role struct{ *Generic }

// NewRole creates a role handler.
func NewRole(kind deps.Type, s store.Store) *Role {
	r := &Role{NewGeneric(kind, s)}
	r.lookup = func(ctx context.Context, id string) (*store.Object, error) {
		return lookupOr(ctx, r.Generic, id, func(o *store.Object) bool {
			return strings.EqualFold(o.ID, id)
		})
	}
	return r
}

// childRank orders a content type's children. Kinds not listed keep their
// stored order after the listed ones.
var childRank = map[string]int{"Keyword": 0, "Workflow": 1, "Template": 2}

// ContentType handles content types. Their children are reported keywords
// first, then workflows, then templates, then everything else.
type ContentType struct{ *Generic }

// NewContentType creates a content type handler.
func NewContentType(kind deps.Type, s store.Store) *ContentType {
	c := &ContentType{NewGeneric(kind, s)}
	c.children = func(o *store.Object) []store.Ref {
		refs := slices.Clone(o.Refs)
		slices.SortStableFunc(refs, func(a, b store.Ref) int {
			return rank(a.Kind) - rank(b.Kind)
		})
		return refs
	}
	return c
}

func rank(kind string) int {
	if r, ok := childRank[kind]; ok {
		return r
	}
	return len(childRank)
}

// lookupOr gets the object by exact id and, if it is missing, returns the
// first object of the kind in id order that satisfies match.
func lookupOr(ctx context.Context, g *Generic, id string, match func(*store.Object) bool) (*store.Object, error) {
	o, err := g.get(ctx, id)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		return o, err
	}
	all, lerr := g.store.List(ctx, string(g.kind))
	if lerr != nil {
		return nil, lerr
	}
	for _, cand := range all {
		if match(cand) {
			return cand, nil
		}
	}
	return nil, err
}

// Catalog returns the handler factories backed by s.
func Catalog(s store.Store) deps.Catalog {
	return deps.Catalog{
		RefGeneric: func(def depmap.Def) (deps.Handler, error) {
			return NewGeneric(deps.Type(def.Type), s), nil
		},
		RefKeyword: func(def depmap.Def) (deps.Handler, error) {
			return NewKeyword(deps.Type(def.Type), s), nil
		},
		RefRole: func(def depmap.Def) (deps.Handler, error) {
			return NewRole(deps.Type(def.Type), s), nil
		},
		RefContentType: func(def depmap.Def) (deps.Handler, error) {
			return NewContentType(deps.Type(def.Type), s), nil
		},
	}
}

// Known reports whether ref names a built-in handler. It is a
// [depmap.HandlerCheck] usable before a store is available.
func Known(ref string) bool {
	return Catalog(nil).Has(ref)
}
