package deps

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/percussion/deployer/pkg/errors"
)

// Type identifies a dependency type (e.g. "Keyword", "RoleDef").
type Type string

// Key is the identity of a dependency: its type and its id.
type Key struct {
	Type Type
	ID   string
}

// K is shorthand for constructing a Key.
func K(t Type, id string) Key { return Key{Type: t, ID: id} }

// String renders the key as "Type:ID".
func (k Key) String() string { return string(k.Type) + ":" + k.ID }

// Compare orders keys lexicographically by type, then id.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Type, o.Type); c != 0 {
		return c
	}
	return cmp.Compare(k.ID, o.ID)
}

// Validate checks that the key has a valid type name and id.
func (k Key) Validate() error {
	if err := errors.ValidateTypeName(string(k.Type)); err != nil {
		return err
	}
	return errors.ValidateDependencyID(k.ID)
}

// ParseKey parses a "Type:ID" string. The id may itself contain colons.
func ParseKey(s string) (Key, error) {
	t, id, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, errors.New(errors.ErrCodeInvalidInput, "invalid dependency key %q (want Type:ID)", s)
	}
	k := Key{Type: Type(strings.TrimSpace(t)), ID: strings.TrimSpace(id)}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// AuthContext is the opaque security capability forwarded to every handler
// call. The engine never inspects it.
type AuthContext any

// Dependency is a single design object participating in export or install.
//
// Dependencies holds only the direct children as reported by the handler;
// children are stubs carrying at least Type and ID. The closure resolver
// expands them.
type Dependency struct {
	ID           string
	Type         Type
	DisplayName  string
	Dependencies []*Dependency
	IsIncluded   bool // selected explicitly rather than pulled in transitively
}

// Key returns the dependency's identity.
func (d *Dependency) Key() Key { return Key{Type: d.Type, ID: d.ID} }

// ChildKeys returns the keys of the direct children in handler order.
func (d *Dependency) ChildKeys() []Key {
	keys := make([]Key, 0, len(d.Dependencies))
	for _, c := range d.Dependencies {
		if c != nil {
			keys = append(keys, c.Key())
		}
	}
	return keys
}

// String renders the dependency for logs.
func (d *Dependency) String() string {
	if d.DisplayName != "" && d.DisplayName != d.ID {
		return fmt.Sprintf("%s (%s)", d.Key(), d.DisplayName)
	}
	return d.Key().String()
}

// DataFile is a named file travelling with a dependency's payload.
type DataFile struct {
	Name string // Relative, forward-slash path
	Data []byte
}

// Payload is the serialized form of a dependency produced by an [Exporter]
// and consumed by an [Installer]. Its content is opaque to the engine.
type Payload struct {
	Data  []byte
	Files []DataFile
}

// Size returns the total number of payload and file bytes.
func (p *Payload) Size() int64 {
	if p == nil {
		return 0
	}
	n := int64(len(p.Data))
	for _, f := range p.Files {
		n += int64(len(f.Data))
	}
	return n
}

// Handler implements existence checks, resolution and enumeration for one
// dependency type.
type Handler interface {
	// Exists reports whether the object exists. It returns an error only for
	// authorization or infrastructure failures, never for "not found".
	Exists(ctx context.Context, auth AuthContext, id string) (bool, error)

	// Resolve loads the object with its direct children. It returns an
	// errors.ErrCodeNotFound error if the id is invalid.
	Resolve(ctx context.Context, auth AuthContext, id string) (*Dependency, error)

	// EnumerateAll lists every object of the type. The sequence is finite
	// and each call starts a fresh iteration.
	EnumerateAll(ctx context.Context, auth AuthContext) iter.Seq2[*Dependency, error]
}

// Exporter produces the archive payload for an object.
type Exporter interface {
	Export(ctx context.Context, auth AuthContext, id string) (*Payload, error)
}

// Installer applies an archived payload on the target system.
type Installer interface {
	Install(ctx context.Context, auth AuthContext, dep *Dependency, p *Payload) error
}
