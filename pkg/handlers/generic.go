package handlers

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/percussion/deployer/pkg/auth"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/store"
)

// lookupFunc finds the stored object a reference resolves to. It returns a
// NOT_FOUND error when there is none.
type lookupFunc func(ctx context.Context, id string) (*store.Object, error)

// Generic handles any object kind stored as-is: the object's references are
// its children and its body and files are its payload.
//
// The other handlers embed Generic and replace how objects are looked up or
// how children are ordered.
type Generic struct {
	kind     deps.Type
	store    store.Store
	lookup   lookupFunc
	children func(o *store.Object) []store.Ref
}

// NewGeneric creates a handler for objects of the given kind.
func NewGeneric(kind deps.Type, s store.Store) *Generic {
	g := &Generic{kind: kind, store: s}
	g.lookup = g.get
	g.children = func(o *store.Object) []store.Ref { return o.Refs }
	return g
}

// Kind returns the handled dependency type.
func (g *Generic) Kind() deps.Type { return g.kind }

func (g *Generic) get(ctx context.Context, id string) (*store.Object, error) {
	return g.store.Get(ctx, string(g.kind), id)
}

// Exists reports whether the object exists. Missing objects are not errors.
func (g *Generic) Exists(ctx context.Context, authCtx deps.AuthContext, id string) (bool, error) {
	if err := auth.Check(authCtx, auth.PermRead); err != nil {
		return false, err
	}
	_, err := g.lookup(ctx, id)
	if errors.Is(err, errors.ErrCodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Resolve loads the object and reports its references as direct children.
func (g *Generic) Resolve(ctx context.Context, authCtx deps.AuthContext, id string) (*deps.Dependency, error) {
	if err := auth.Check(authCtx, auth.PermRead); err != nil {
		return nil, err
	}
	o, err := g.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.dependency(o), nil
}

func (g *Generic) dependency(o *store.Object) *deps.Dependency {
	d := &deps.Dependency{Type: g.kind, ID: o.ID, DisplayName: o.Name}
	if d.DisplayName == "" {
		d.DisplayName = o.ID
	}
	for _, r := range g.children(o) {
		d.Dependencies = append(d.Dependencies, &deps.Dependency{Type: deps.Type(r.Kind), ID: r.ID})
	}
	return d
}

// EnumerateAll yields every stored object of the kind in id order. Each call
// lists the store afresh.
func (g *Generic) EnumerateAll(ctx context.Context, authCtx deps.AuthContext) iter.Seq2[*deps.Dependency, error] {
	return func(yield func(*deps.Dependency, error) bool) {
		if err := auth.Check(authCtx, auth.PermRead); err != nil {
			yield(nil, err)
			return
		}
		objs, err := g.store.List(ctx, string(g.kind))
		if err != nil {
			yield(nil, err)
			return
		}
		for _, o := range objs {
			if !yield(g.dependency(o), nil) {
				return
			}
		}
	}
}

// document is the payload encoding of an object; files travel separately.
// The body is a string so its bytes survive unchanged.
type document struct {
	Name string      `json:"name,omitempty"`
	Refs []store.Ref `json:"refs,omitempty"`
	Body string      `json:"body,omitempty"`
}

// Export serializes the object into a payload.
func (g *Generic) Export(ctx context.Context, authCtx deps.AuthContext, id string) (*deps.Payload, error) {
	if err := auth.Check(authCtx, auth.PermRead); err != nil {
		return nil, err
	}
	o, err := g.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(document{Name: o.Name, Refs: o.Refs, Body: string(o.Body)})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s %q", g.kind, o.ID)
	}
	p := &deps.Payload{Data: data}
	for _, name := range o.FileNames() {
		p.Files = append(p.Files, deps.DataFile{Name: name, Data: o.Files[name]})
	}
	return p, nil
}

// Install stores the archived object, replacing any existing object with the
// same id.
func (g *Generic) Install(ctx context.Context, authCtx deps.AuthContext, dep *deps.Dependency, p *deps.Payload) error {
	if err := auth.Check(authCtx, auth.PermWrite); err != nil {
		return err
	}
	if dep.Type != g.kind {
		return errors.New(errors.ErrCodeInvalidInput, "%s handler cannot install %s", g.kind, dep.Key())
	}
	var doc document
	if p != nil && len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &doc); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode payload of %s", dep.Key())
		}
	}
	o := &store.Object{Kind: string(g.kind), ID: dep.ID, Name: doc.Name, Refs: doc.Refs}
	if doc.Body != "" {
		o.Body = json.RawMessage(doc.Body)
	}
	if p != nil && len(p.Files) > 0 {
		o.Files = make(map[string][]byte, len(p.Files))
		for _, f := range p.Files {
			o.Files[f.Name] = f.Data
		}
	}
	return g.store.Put(ctx, o)
}

var (
	_ deps.Handler   = (*Generic)(nil)
	_ deps.Exporter  = (*Generic)(nil)
	_ deps.Installer = (*Generic)(nil)
)
