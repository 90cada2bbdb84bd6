package depmap

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/percussion/deployer/pkg/errors"
)

const sampleTOML = `
[[dependency]]
type = "ContentType"
handler = "contenttype"
supports-id-types = true

[[dependency]]
type = "Keyword"
handler = "keyword"
parents = ["ContentType"]

[[dependency]]
type = "Role"
handler = "role"
parents = ["ContentType", "Workflow"]

[[dependency]]
type = "Workflow"
handler = "generic"
parents = ["ContentType"]
`

const sampleHCL = `
dependency "ContentType" {
  handler           = "contenttype"
  supports_id_types = true
}

dependency "Keyword" {
  handler = "keyword"
  parents = ["ContentType"]
}
`

func known(refs ...string) HandlerCheck {
	return func(ref string) bool { return slices.Contains(refs, ref) }
}

func TestParseTOML(t *testing.T) {
	m, err := Parse("depmap.toml", []byte(sampleTOML), known("contenttype", "keyword", "role", "generic"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if m.Len() != 4 {
		t.Errorf("Len() = %d, want 4", m.Len())
	}
	want := []string{"ContentType", "Keyword", "Role", "Workflow"}
	if got := m.Types(); !slices.Equal(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}

	ct, ok := m.Def("ContentType")
	if !ok {
		t.Fatal("Def(ContentType) not found")
	}
	if !ct.SupportsIDTypes {
		t.Error("ContentType should support id types")
	}
	if ct.Handler != "contenttype" {
		t.Errorf("Handler = %q, want %q", ct.Handler, "contenttype")
	}

	role, _ := m.Def("Role")
	if !role.HasParent("Workflow") || role.HasParent("Keyword") {
		t.Errorf("Role parents = %v", role.Parents)
	}

	if _, ok := m.Def("Template"); ok {
		t.Error("Def(Template) should not be found")
	}
}

func TestParseHCL(t *testing.T) {
	m, err := Parse("depmap.hcl", []byte(sampleHCL), known("contenttype", "keyword"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := m.Types(); !slices.Equal(got, []string{"ContentType", "Keyword"}) {
		t.Errorf("Types() = %v", got)
	}
	kw, _ := m.Def("Keyword")
	if !slices.Equal(kw.Parents, []string{"ContentType"}) {
		t.Errorf("Keyword parents = %v", kw.Parents)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown handler",
			doc:  "[[dependency]]\ntype = \"Keyword\"\nhandler = \"nope\"\n",
		},
		{
			name: "missing handler",
			doc:  "[[dependency]]\ntype = \"Keyword\"\n",
		},
		{
			name: "unknown parent",
			doc:  "[[dependency]]\ntype = \"Keyword\"\nhandler = \"keyword\"\nparents = [\"Ghost\"]\n",
		},
		{
			name: "duplicate type",
			doc:  "[[dependency]]\ntype = \"Keyword\"\nhandler = \"keyword\"\n[[dependency]]\ntype = \"Keyword\"\nhandler = \"keyword\"\n",
		},
		{
			name: "invalid type name",
			doc:  "[[dependency]]\ntype = \"Key word\"\nhandler = \"keyword\"\n",
		},
		{
			name: "unknown key",
			doc:  "[[dependency]]\ntype = \"Keyword\"\nhandler = \"keyword\"\nparent = \"x\"\n",
		},
		{
			name: "syntax error",
			doc:  "[[dependency]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("depmap.toml", []byte(tt.doc), known("keyword"))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !errors.Is(err, errors.ErrCodeConfiguration) {
				t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeConfiguration)
			}
		})
	}
}

func TestChildren(t *testing.T) {
	m, err := Parse("depmap.toml", []byte(sampleTOML), nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := []string{"Keyword", "Role", "Workflow"}
	if got := m.Children("ContentType"); !slices.Equal(got, want) {
		t.Errorf("Children(ContentType) = %v, want %v", got, want)
	}
	if got := m.Children("Keyword"); len(got) != 0 {
		t.Errorf("Children(Keyword) = %v, want none", got)
	}
}

func TestDefsIsCopy(t *testing.T) {
	m, _ := Parse("depmap.toml", []byte(sampleTOML), nil)
	defs := m.Defs()
	defs[0].Type = "Mutated"
	if _, ok := m.Def("ContentType"); !ok {
		t.Error("mutating Defs() result changed the map")
	}
}

func TestNilMap(t *testing.T) {
	var m *Map
	if m.Len() != 0 || m.Types() != nil || m.Defs() != nil {
		t.Error("nil map should be empty")
	}
	if _, ok := m.Def("Keyword"); ok {
		t.Error("nil map should not find defs")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depmap.hcl")
	if err := os.WriteFile(path, []byte(sampleHCL), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := ParseFile(path, nil)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	_, err = ParseFile(filepath.Join(dir, "missing.toml"), nil)
	if !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("missing file error = %v, want CONFIGURATION", err)
	}
}

func TestLoaderLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	l := NewLoaderFunc(func() (*Map, error) {
		calls.Add(1)
		return Parse("depmap.toml", []byte(sampleTOML), nil)
	})

	if l.Loaded() {
		t.Error("Loaded() should be false before Load")
	}

	var wg sync.WaitGroup
	maps := make([]*Map, 16)
	for i := range maps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := l.Load()
			if err != nil {
				t.Errorf("Load() error: %v", err)
			}
			maps[i] = m
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
	for _, m := range maps {
		if m != maps[0] {
			t.Fatal("Load() returned different maps")
		}
	}
	if !l.Loaded() {
		t.Error("Loaded() should be true after Load")
	}
}

func TestLoaderCachesFailure(t *testing.T) {
	var calls atomic.Int32
	l := NewLoaderFunc(func() (*Map, error) {
		calls.Add(1)
		return nil, errors.New(errors.ErrCodeConfiguration, "broken")
	})

	for range 3 {
		m, err := l.Load()
		if err == nil || m != nil {
			t.Fatalf("Load() = %v, %v; want failure", m, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
}
