package depmap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/percussion/deployer/pkg/errors"
)

// HandlerCheck reports whether a handler reference can be resolved.
// A nil HandlerCheck accepts any non-empty reference.
type HandlerCheck func(ref string) bool

type tomlDoc struct {
	Dependency []tomlDef `toml:"dependency"`
}

type tomlDef struct {
	Type            string   `toml:"type"`
	Handler         string   `toml:"handler"`
	Parents         []string `toml:"parents"`
	SupportsIDTypes bool     `toml:"supports-id-types"`
}

// ParseFile reads and parses a dependency map document. The format is chosen
// by extension: ".hcl" selects HCL, anything else is decoded as TOML.
func ParseFile(path string, check HandlerCheck) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read dependency map %s", path)
	}
	return Parse(filepath.Base(path), data, check)
}

// Parse parses a dependency map document named name.
func Parse(name string, data []byte, check HandlerCheck) (*Map, error) {
	var (
		defs []Def
		err  error
	)
	if strings.EqualFold(filepath.Ext(name), ".hcl") {
		defs, err = decodeHCL(name, data)
	} else {
		defs, err = decodeTOML(data)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "parse dependency map %s", name)
	}
	if err := validate(defs, check); err != nil {
		return nil, err
	}
	return newMap(defs), nil
}

func decodeTOML(data []byte) ([]Def, error) {
	var doc tomlDoc
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeConfiguration, "unknown key %q", undecoded[0].String())
	}
	defs := make([]Def, len(doc.Dependency))
	for i, d := range doc.Dependency {
		defs[i] = Def{
			Type:            strings.TrimSpace(d.Type),
			Handler:         strings.TrimSpace(d.Handler),
			Parents:         trimAll(d.Parents),
			SupportsIDTypes: d.SupportsIDTypes,
		}
	}
	return defs, nil
}

// validate enforces the load-time invariants: unique valid type names,
// resolvable handlers and defined parents.
func validate(defs []Def, check HandlerCheck) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := errors.ValidateTypeName(d.Type); err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "invalid dependency definition")
		}
		if seen[d.Type] {
			return errors.New(errors.ErrCodeConfiguration, "dependency type %q defined more than once", d.Type)
		}
		seen[d.Type] = true

		if d.Handler == "" {
			return errors.New(errors.ErrCodeConfiguration, "dependency type %q has no handler", d.Type)
		}
		if check != nil && !check(d.Handler) {
			return errors.New(errors.ErrCodeConfiguration, "dependency type %q: cannot resolve handler %q", d.Type, d.Handler)
		}
	}
	for _, d := range defs {
		for _, p := range d.Parents {
			if !seen[p] {
				return errors.New(errors.ErrCodeConfiguration, "dependency type %q: unknown parent type %q", d.Type, p)
			}
		}
	}
	return nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
