package closure

import (
	"context"
	"slices"

	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
)

// Resolver expands root selections into closures using the handlers of a
// [deps.Manager].
//
// A Resolver holds no per-job state and is safe for concurrent use as long
// as the manager's handlers are.
type Resolver struct {
	mgr *deps.Manager
}

// NewResolver creates a resolver backed by mgr.
func NewResolver(mgr *deps.Manager) *Resolver {
	return &Resolver{mgr: mgr}
}

// Resolve computes the closure of roots.
//
// The walk is depth-first with an explicit stack and visits children in the
// order handlers return them, so for an unchanged object store the same roots
// always produce the same graph. An object is resolved at most once; an edge
// back to an object already visited is recorded but never expanded again,
// which makes cycles terminate naturally.
//
// Resolve returns a *errors.DependencyError naming the failing (type, id)
// when a root cannot be resolved or any handler fails with a hard error.
// The context is checked before each expansion.
func (r *Resolver) Resolve(ctx context.Context, auth deps.AuthContext, roots []deps.Key, opts Options) (*Closure, error) {
	return r.resolve(ctx, auth, roots, nil, opts)
}

// ResolveAll computes the closure of every object of the given types, as
// enumerated by their handlers. Enumerated objects count as roots.
func (r *Resolver) ResolveAll(ctx context.Context, auth deps.AuthContext, types []deps.Type, opts Options) (*Closure, error) {
	return r.ResolveSelection(ctx, auth, nil, types, opts)
}

// ResolveSelection computes the closure of the explicit roots together with
// every object of the given types. Explicit roots come first.
func (r *Resolver) ResolveSelection(ctx context.Context, auth deps.AuthContext, roots []deps.Key, types []deps.Type, opts Options) (*Closure, error) {
	roots = slices.Clone(roots)
	known := make(map[deps.Key]*deps.Dependency)
	for _, t := range types {
		h, err := r.mgr.MustHandler(t)
		if err != nil {
			return nil, err
		}
		for d, err := range h.EnumerateAll(ctx, auth) {
			if err != nil {
				return nil, errors.AtDependency(string(t), "*", err)
			}
			if ctx.Err() != nil {
				return nil, errors.Canceled(ctx.Err())
			}
			k := d.Key()
			if _, dup := known[k]; !dup {
				known[k] = d
				roots = append(roots, k)
			}
		}
	}
	return r.resolve(ctx, auth, roots, known, opts)
}

func (r *Resolver) resolve(ctx context.Context, auth deps.AuthContext, roots []deps.Key, known map[deps.Key]*deps.Dependency, opts Options) (*Closure, error) {
	w := &walker{
		ctx:     ctx,
		auth:    auth,
		mgr:     r.mgr,
		opts:    opts.WithDefaults(),
		known:   known,
		g:       dag.New(),
		roots:   make(map[deps.Key]bool),
		seen:    make(map[deps.Key]bool),
		alias:   make(map[deps.Key]deps.Key),
		waiting: make(map[deps.Key][]dag.NodeID),
		failed:  make(map[deps.Key]bool),
	}
	return w.run(roots)
}

// walker holds the state of one resolution.
type walker struct {
	ctx   context.Context
	auth  deps.AuthContext
	mgr   *deps.Manager
	opts  Options
	known map[deps.Key]*deps.Dependency // pre-resolved by enumeration

	g        *dag.Graph
	roots    map[deps.Key]bool
	seen     map[deps.Key]bool         // queued or resolved
	alias    map[deps.Key]deps.Key     // requested key -> key the handler returned
	waiting  map[deps.Key][]dag.NodeID // parents of keys still on the stack
	failed   map[deps.Key]bool         // skipped with a warning
	stubs    [][]deps.Key              // per node: handler-reported children
	warnings []Warning
}

func (w *walker) run(roots []deps.Key) (*Closure, error) {
	c := &Closure{}
	for _, k := range roots {
		if w.roots[k] {
			continue
		}
		if err := k.Validate(); err != nil {
			return nil, errors.AtDependency(string(k.Type), k.ID, err)
		}
		if _, ok := w.mgr.Handler(k.Type); !ok {
			return nil, errors.AtDependency(string(k.Type), k.ID,
				errors.New(errors.ErrCodeInvalidInput, "unknown dependency type %q", k.Type))
		}
		w.roots[k] = true
		w.seen[k] = true
		c.Roots = append(c.Roots, k)
	}

	stack := slices.Clone(c.Roots)
	slices.Reverse(stack)

	for len(stack) > 0 {
		if err := w.ctx.Err(); err != nil {
			return nil, errors.Canceled(err)
		}
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id := w.lookup(k); id != dag.None {
			w.connect(k, id)
			continue
		}

		d, err := w.fetch(k)
		if err != nil {
			if w.roots[k] || errors.IsHard(err) {
				return nil, errors.AtDependency(string(k.Type), k.ID, err)
			}
			w.skip(k, err)
			continue
		}

		id, err := w.add(k, d)
		if err != nil {
			return nil, err
		}
		if id == dag.None {
			continue
		}

		children := w.stubs[id]
		for i := len(children) - 1; i >= 0; i-- {
			ck := children[i]
			cid := w.lookup(ck)
			switch {
			case cid != dag.None:
				_ = w.g.AddEdge(cid, id)
			case w.failed[ck]:
			case w.seen[ck]:
				w.waiting[ck] = append(w.waiting[ck], id)
			default:
				w.seen[ck] = true
				w.waiting[ck] = append(w.waiting[ck], id)
				stack = append(stack, ck)
			}
		}
	}

	w.link()
	c.Graph = w.g
	c.Warnings = w.warnings
	w.opts.Logger.Debug("resolved closure", "roots", len(c.Roots), "nodes", w.g.NodeCount(), "edges", w.g.EdgeCount(), "skipped", len(w.warnings))
	return c, nil
}

// fetch resolves k through its handler.
func (w *walker) fetch(k deps.Key) (*deps.Dependency, error) {
	if d, ok := w.known[k]; ok {
		return d, nil
	}
	h, ok := w.mgr.Handler(k.Type)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "no handler for dependency type %q", k.Type)
	}
	d, err := h.Resolve(w.ctx, w.auth, k.ID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "%s does not exist", k)
	}
	return d, nil
}

// add inserts a freshly resolved dependency and wires up the parents that
// were waiting for it. Handlers may resolve a reference to an object with a
// different canonical id (a keyword found by label, for example); such keys
// become aliases of the canonical node. Returns None when d was already in
// the graph under its canonical key.
func (w *walker) add(k deps.Key, d *deps.Dependency) (dag.NodeID, error) {
	canon := d.Key()
	if canon != k {
		w.alias[k] = canon
		if id := w.g.Lookup(canon); id != dag.None {
			if w.roots[k] {
				d0, _ := w.g.Node(id)
				d0.Dep.IsIncluded = true
			}
			w.connect(k, id)
			return dag.None, nil
		}
		w.seen[canon] = true
	}

	if w.g.NodeCount() >= w.opts.MaxNodes {
		return dag.None, errors.AtDependency(string(k.Type), k.ID,
			errors.New(errors.ErrCodeInvalidInput, "closure exceeds %d dependencies", w.opts.MaxNodes))
	}

	d.IsIncluded = w.roots[k] || w.roots[canon]
	id, err := w.g.AddNode(d)
	if err != nil {
		return dag.None, errors.Wrap(errors.ErrCodeInternal, err, "add %s", canon)
	}
	w.stubs = append(w.stubs, d.ChildKeys())
	w.connect(k, id)
	if canon != k {
		w.connect(canon, id)
	}
	return id, nil
}

// connect adds the edges from id to every parent waiting on k.
func (w *walker) connect(k deps.Key, id dag.NodeID) {
	for _, p := range w.waiting[k] {
		_ = w.g.AddEdge(id, p)
	}
	delete(w.waiting, k)
}

func (w *walker) lookup(k deps.Key) dag.NodeID {
	if canon, ok := w.alias[k]; ok {
		k = canon
	}
	return w.g.Lookup(k)
}

func (w *walker) skip(k deps.Key, err error) {
	w.failed[k] = true
	delete(w.waiting, k)
	w.warnings = append(w.warnings, Warning{Key: k, Err: err})
	w.opts.Logger.Warn("skipping dependency", "type", k.Type, "id", k.ID, "err", errors.UserMessage(err))
}

// link replaces each dependency's child stubs with the resolved nodes,
// preserving handler order and dropping skipped children.
func (w *walker) link() {
	for _, n := range w.g.Nodes() {
		keys := w.stubs[n.ID]
		children := make([]*deps.Dependency, 0, len(keys))
		for _, ck := range keys {
			if cn, ok := w.g.Node(w.lookup(ck)); ok && !slices.Contains(children, cn.Dep) {
				children = append(children, cn.Dep)
			}
		}
		n.Dep.Dependencies = children
	}
}
