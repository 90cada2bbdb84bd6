package closure

import (
	"context"
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/percussion/deployer/pkg/depmap"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
)

// world is an in-memory object store: every existing object and the keys of
// its direct children.
type world struct {
	objects map[deps.Key][]deps.Key
	errs    map[deps.Key]error
	aliases map[deps.Key]deps.Key // reference -> canonical object
	calls   map[deps.Key]int
}

func newWorld() *world {
	return &world{
		objects: make(map[deps.Key][]deps.Key),
		errs:    make(map[deps.Key]error),
		aliases: make(map[deps.Key]deps.Key),
		calls:   make(map[deps.Key]int),
	}
}

// add declares an object and its children, keys written as Type:ID.
func (w *world) add(parent string, children ...string) *world {
	pk := mustKey(parent)
	var ck []deps.Key
	for _, c := range children {
		ck = append(ck, mustKey(c))
	}
	w.objects[pk] = ck
	return w
}

func mustKey(s string) deps.Key {
	k, err := deps.ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

type mockHandler struct {
	typ deps.Type
	w   *world
}

func (m *mockHandler) Exists(ctx context.Context, auth deps.AuthContext, id string) (bool, error) {
	k := deps.K(m.typ, id)
	if err := m.w.errs[k]; err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
		return false, err
	}
	if canon, ok := m.w.aliases[k]; ok {
		k = canon
	}
	_, ok := m.w.objects[k]
	return ok && m.w.errs[k] == nil, nil
}

func (m *mockHandler) Resolve(ctx context.Context, auth deps.AuthContext, id string) (*deps.Dependency, error) {
	k := deps.K(m.typ, id)
	m.w.calls[k]++
	if err := m.w.errs[k]; err != nil {
		return nil, err
	}
	if canon, ok := m.w.aliases[k]; ok {
		k = canon
	}
	children, ok := m.w.objects[k]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "%s does not exist", k)
	}
	d := &deps.Dependency{Type: k.Type, ID: k.ID, DisplayName: strings.ToUpper(k.ID)}
	for _, c := range children {
		d.Dependencies = append(d.Dependencies, &deps.Dependency{Type: c.Type, ID: c.ID})
	}
	return d, nil
}

func (m *mockHandler) EnumerateAll(ctx context.Context, auth deps.AuthContext) iter.Seq2[*deps.Dependency, error] {
	return func(yield func(*deps.Dependency, error) bool) {
		keys := slices.SortedFunc(maps.Keys(m.w.objects), deps.Key.Compare)
		for _, k := range keys {
			if k.Type != m.typ {
				continue
			}
			d, err := m.Resolve(ctx, auth, k.ID)
			if !yield(d, err) {
				return
			}
		}
	}
}

func newResolver(t *testing.T, w *world, types ...string) *Resolver {
	t.Helper()
	var doc strings.Builder
	for _, typ := range types {
		fmt.Fprintf(&doc, "[[dependency]]\ntype = %q\nhandler = \"mock\"\n", typ)
	}
	catalog := deps.Catalog{
		"mock": func(def depmap.Def) (deps.Handler, error) {
			return &mockHandler{typ: deps.Type(def.Type), w: w}, nil
		},
	}
	m, err := depmap.Parse("depmap.toml", []byte(doc.String()), catalog.Has)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	mgr, err := deps.NewManager(m, catalog)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return NewResolver(mgr)
}

var quiet = Options{Logger: log.New(io.Discard)}

func keys(ss ...string) []deps.Key {
	out := make([]deps.Key, len(ss))
	for i, s := range ss {
		out[i] = mustKey(s)
	}
	return out
}

func TestResolveSingle(t *testing.T) {
	w := newWorld().add("Keyword:K1")
	r := newResolver(t, w, "Keyword")

	c, err := r.Resolve(context.Background(), nil, keys("Keyword:K1"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !slices.Equal(c.Keys(), keys("Keyword:K1")) {
		t.Errorf("Keys() = %v", c.Keys())
	}
	n, _ := c.Graph.NodeByKey(mustKey("Keyword:K1"))
	if !n.Dep.IsIncluded {
		t.Error("root should be included")
	}
	if len(c.Warnings) != 0 {
		t.Errorf("Warnings = %v", c.Warnings)
	}
}

func TestResolveDepthFirstHandlerOrder(t *testing.T) {
	w := newWorld().
		add("ContentType:R", "Keyword:a", "Keyword:b").
		add("Keyword:a", "Keyword:c").
		add("Keyword:b").
		add("Keyword:c")
	r := newResolver(t, w, "ContentType", "Keyword")

	c, err := r.Resolve(context.Background(), nil, keys("ContentType:R"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := keys("ContentType:R", "Keyword:a", "Keyword:c", "Keyword:b")
	if !slices.Equal(c.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", c.Keys(), want)
	}
	if c.Graph.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", c.Graph.EdgeCount())
	}
	root, _ := c.Graph.NodeByKey(mustKey("ContentType:R"))
	var got []string
	for _, d := range root.Dep.Dependencies {
		got = append(got, d.ID)
		if d.IsIncluded {
			t.Errorf("%s pulled in transitively but marked included", d.Key())
		}
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("root children = %v, want [a b]", got)
	}
}

func TestResolveCycle(t *testing.T) {
	w := newWorld().
		add("T:A", "T:B").
		add("T:B", "T:C").
		add("T:C", "T:A")
	r := newResolver(t, w, "T")

	c, err := r.Resolve(context.Background(), nil, keys("T:A"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if c.Graph.EdgeCount() != 3 || !c.Graph.HasCycle() {
		t.Errorf("edges = %d, cycle = %v", c.Graph.EdgeCount(), c.Graph.HasCycle())
	}
	for k, n := range w.calls {
		if n != 1 {
			t.Errorf("%s resolved %d times, want 1", k, n)
		}
	}
}

func TestResolveSelfReference(t *testing.T) {
	w := newWorld().add("T:A", "T:A")
	r := newResolver(t, w, "T")

	c, err := r.Resolve(context.Background(), nil, keys("T:A"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if c.Len() != 1 || c.Graph.EdgeCount() != 1 {
		t.Errorf("nodes = %d, edges = %d, want 1, 1", c.Len(), c.Graph.EdgeCount())
	}
}

func TestResolveReachableOnly(t *testing.T) {
	w := newWorld().
		add("T:root", "T:child").
		add("T:child").
		add("T:island", "T:child")
	r := newResolver(t, w, "T")

	c, err := r.Resolve(context.Background(), nil, keys("T:root"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if c.Contains(mustKey("T:island")) {
		t.Error("unreachable node resolved")
	}
	if !c.Contains(mustKey("T:child")) {
		t.Error("reachable node missing")
	}
}

func TestResolveIdempotent(t *testing.T) {
	w := newWorld().
		add("T:a", "T:b", "T:c").
		add("T:b", "T:c", "T:a").
		add("T:c", "T:d").
		add("T:d")
	r := newResolver(t, w, "T")

	first, err := r.Resolve(context.Background(), nil, keys("T:a", "T:c"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(context.Background(), nil, keys("T:a", "T:c"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(first.Keys(), second.Keys()) {
		t.Errorf("second run = %v, first = %v", second.Keys(), first.Keys())
	}
	if first.Graph.EdgeCount() != second.Graph.EdgeCount() {
		t.Errorf("edge counts differ: %d vs %d", first.Graph.EdgeCount(), second.Graph.EdgeCount())
	}
}

func TestResolveRoots(t *testing.T) {
	w := newWorld().
		add("T:a", "T:b").
		add("T:b")
	r := newResolver(t, w, "T")

	c, err := r.Resolve(context.Background(), nil, keys("T:a", "T:b", "T:a"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(c.Roots, keys("T:a", "T:b")) {
		t.Errorf("Roots = %v", c.Roots)
	}
	for _, n := range c.Graph.Nodes() {
		if !n.Dep.IsIncluded {
			t.Errorf("%s selected explicitly but not included", n.Key())
		}
	}
	if c.Graph.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", c.Graph.EdgeCount())
	}
}

func TestResolveMissingRoot(t *testing.T) {
	w := newWorld()
	r := newResolver(t, w, "Keyword")

	_, err := r.Resolve(context.Background(), nil, keys("Keyword:gone"), quiet)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("Resolve() error = %v, want NOT_FOUND", err)
	}
	typ, id, ok := errors.FailedDependency(err)
	if !ok || typ != "Keyword" || id != "gone" {
		t.Errorf("FailedDependency() = %q, %q, %v", typ, id, ok)
	}
}

func TestResolveSoftFailures(t *testing.T) {
	w := newWorld().
		add("T:root", "T:gone", "T:ok", "Ghost:x").
		add("T:ok", "T:gone")
	r := newResolver(t, w, "T")

	c, err := r.Resolve(context.Background(), nil, keys("T:root"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !slices.Equal(c.Keys(), keys("T:root", "T:ok")) {
		t.Errorf("Keys() = %v", c.Keys())
	}
	if len(c.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2", c.Warnings)
	}
	if !c.Skipped(mustKey("T:gone")) || !errors.Is(c.Warnings[0].Err, errors.ErrCodeNotFound) {
		t.Errorf("Warnings[0] = %v", c.Warnings[0])
	}
	if !c.Skipped(mustKey("Ghost:x")) || !errors.Is(c.Warnings[1].Err, errors.ErrCodeUnsupported) {
		t.Errorf("Warnings[1] = %v", c.Warnings[1])
	}
	root, _ := c.Graph.NodeByKey(mustKey("T:root"))
	if len(root.Dep.Dependencies) != 1 || root.Dep.Dependencies[0].ID != "ok" {
		t.Errorf("root children = %v, want only ok", root.Dep.Dependencies)
	}
	if w.calls[mustKey("T:gone")] != 1 {
		t.Errorf("failed node resolved %d times, want 1", w.calls[mustKey("T:gone")])
	}
}

func TestResolveHardFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.Code
	}{
		{"unauthorized", errors.New(errors.ErrCodeUnauthorized, "access denied"), errors.ErrCodeUnauthorized},
		{"configuration", errors.New(errors.ErrCodeConfiguration, "bad handler"), errors.ErrCodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld().add("T:root", "T:secret").add("T:secret")
			w.errs[mustKey("T:secret")] = tt.err
			r := newResolver(t, w, "T")

			_, err := r.Resolve(context.Background(), nil, keys("T:root"), quiet)
			if !errors.Is(err, tt.code) {
				t.Fatalf("Resolve() error = %v, want %s", err, tt.code)
			}
			if _, id, _ := errors.FailedDependency(err); id != "secret" {
				t.Errorf("failed id = %q, want secret", id)
			}
		})
	}
}

func TestResolveUnknownRootType(t *testing.T) {
	r := newResolver(t, newWorld(), "T")
	_, err := r.Resolve(context.Background(), nil, keys("Ghost:x"), quiet)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Resolve() error = %v, want INVALID_INPUT", err)
	}
}

func TestResolveMaxNodes(t *testing.T) {
	w := newWorld().add("T:a", "T:b").add("T:b", "T:c").add("T:c")
	r := newResolver(t, w, "T")

	_, err := r.Resolve(context.Background(), nil, keys("T:a"), Options{MaxNodes: 2, Logger: quiet.Logger})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Resolve() error = %v, want INVALID_INPUT", err)
	}
}

func TestResolveCanceled(t *testing.T) {
	w := newWorld().add("T:a")
	r := newResolver(t, w, "T")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, nil, keys("T:a"), quiet)
	if !errors.IsCanceled(err) {
		t.Errorf("Resolve() error = %v, want canceled", err)
	}
	if w.calls[mustKey("T:a")] != 0 {
		t.Error("handler called after cancellation")
	}
}

func TestResolveAlias(t *testing.T) {
	w := newWorld().
		add("ContentType:article", "Keyword:Topics", "Keyword:k-1").
		add("Keyword:k-1")
	w.aliases[mustKey("Keyword:Topics")] = mustKey("Keyword:k-1")
	r := newResolver(t, w, "ContentType", "Keyword")

	c, err := r.Resolve(context.Background(), nil, keys("ContentType:article"), quiet)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !slices.Equal(c.Keys(), keys("ContentType:article", "Keyword:k-1")) {
		t.Errorf("Keys() = %v", c.Keys())
	}
	if c.Graph.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", c.Graph.EdgeCount())
	}
}

func TestResolveAll(t *testing.T) {
	w := newWorld().
		add("Role:editor", "Keyword:k").
		add("Role:admin").
		add("Keyword:k")
	r := newResolver(t, w, "Role", "Keyword")

	c, err := r.ResolveAll(context.Background(), nil, []deps.Type{"Role"}, quiet)
	if err != nil {
		t.Fatalf("ResolveAll() error: %v", err)
	}
	if !slices.Equal(c.Roots, keys("Role:admin", "Role:editor")) {
		t.Errorf("Roots = %v", c.Roots)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	if w.calls[mustKey("Role:editor")] != 1 {
		t.Errorf("enumerated role resolved %d times, want 1", w.calls[mustKey("Role:editor")])
	}

	if _, err := r.ResolveAll(context.Background(), nil, []deps.Type{"Ghost"}, quiet); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("ResolveAll(Ghost) error = %v, want CONFIGURATION", err)
	}
}

func TestExistsMatchesResolve(t *testing.T) {
	w := newWorld().add("T:a", "T:b").add("T:b")
	w.errs[mustKey("T:c")] = errors.New(errors.ErrCodeNotFound, "deleted")
	h := &mockHandler{typ: "T", w: w}
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "missing"} {
		exists, err := h.Exists(ctx, nil, id)
		if err != nil {
			t.Fatalf("Exists(%s) error: %v", id, err)
		}
		_, rerr := h.Resolve(ctx, nil, id)
		if exists != (rerr == nil) {
			t.Errorf("Exists(%s) = %v but Resolve error = %v", id, exists, rerr)
		}
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	got := Options{MaxNodes: -1}.WithDefaults()
	if got.MaxNodes != DefaultMaxNodes {
		t.Errorf("MaxNodes = %d, want %d", got.MaxNodes, DefaultMaxNodes)
	}
	if got.Logger == nil {
		t.Error("Logger should not be nil after WithDefaults")
	}
	if kept := (Options{MaxNodes: 7}).WithDefaults(); kept.MaxNodes != 7 {
		t.Errorf("MaxNodes = %d, want 7", kept.MaxNodes)
	}
}
