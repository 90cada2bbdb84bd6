// Package store provides the object store behind the built-in dependency
// handlers.
//
// Design objects (keywords, roles, content types, workflows, ...) are kept as
// [Object] values grouped by kind. Each object carries an opaque body, named
// data files and references to the objects it depends on. Handlers translate
// objects to and from dependencies; the store itself knows nothing about
// dependency semantics.
//
// Three backends implement [Store]:
//   - [Memory]: in-process, for tests and dry runs
//   - [File]: one JSON document per object under a directory, for the CLI
//   - [Mongo]: one collection per kind, for shared deployments
package store

import (
	"cmp"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/percussion/deployer/pkg/errors"
)

// ErrNotFound is the cause of every NOT_FOUND error returned by a Store.
var ErrNotFound = stderrors.New("object not found")

// Ref points at another object.
type Ref struct {
	Kind string `json:"kind" bson:"kind"`
	ID   string `json:"id" bson:"id"`
}

// Object is a stored design object.
type Object struct {
	Kind    string            `json:"kind" bson:"kind"`
	ID      string            `json:"id" bson:"_id"`
	Name    string            `json:"name,omitempty" bson:"name,omitempty"`
	Refs    []Ref             `json:"refs,omitempty" bson:"refs,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty" bson:"body,omitempty"`
	Files   map[string][]byte `json:"files,omitempty" bson:"files,omitempty"`
	Updated time.Time         `json:"updated,omitzero" bson:"updated,omitempty"`
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	c.Refs = slices.Clone(o.Refs)
	c.Body = slices.Clone(o.Body)
	if o.Files != nil {
		c.Files = make(map[string][]byte, len(o.Files))
		for k, v := range o.Files {
			c.Files[k] = slices.Clone(v)
		}
	}
	return &c
}

// FileNames returns the names of the object's data files in sorted order.
func (o *Object) FileNames() []string {
	return slices.Sorted(maps.Keys(o.Files))
}

// Validate checks the object's kind, id and file names.
func (o *Object) Validate() error {
	if o == nil {
		return errors.New(errors.ErrCodeInvalidInput, "object is nil")
	}
	if err := errors.ValidateTypeName(o.Kind); err != nil {
		return err
	}
	if err := errors.ValidateDependencyID(o.ID); err != nil {
		return err
	}
	for name := range o.Files {
		if err := errors.ValidateDataFileName(name); err != nil {
			return err
		}
	}
	return nil
}

// Store persists objects by kind and id.
//
// Implementations must be safe for concurrent use. Get returns an error with
// code NOT_FOUND wrapping ErrNotFound when the object does not exist.
// List returns objects sorted by id. Returned objects are copies that the
// caller may modify.
type Store interface {
	Get(ctx context.Context, kind, id string) (*Object, error)
	Put(ctx context.Context, obj *Object) error
	List(ctx context.Context, kind string) ([]*Object, error)
	Close() error
}

func notFound(kind, id string) error {
	return errors.Wrap(errors.ErrCodeNotFound, ErrNotFound, "%s %q", kind, id)
}

func byID(a, b *Object) int { return cmp.Compare(a.ID, b.ID) }

// Import reads a JSON array of objects from r and stores each of them.
// It returns the number of objects stored.
func Import(ctx context.Context, s Store, r io.Reader) (int, error) {
	var objs []*Object
	if err := json.NewDecoder(r).Decode(&objs); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode objects")
	}
	for i, o := range objs {
		if err := ctx.Err(); err != nil {
			return i, errors.Canceled(err)
		}
		if err := s.Put(ctx, o); err != nil {
			return i, err
		}
	}
	return len(objs), nil
}

// Config selects and configures a backend.
type Config struct {
	Backend       string // "memory", "file" or "mongo"
	Dir           string // file backend root
	MongoURI      string
	MongoDatabase string
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Dir)
	case "mongo":
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return nil, errors.New(errors.ErrCodeConfiguration, "unknown store backend %q (want memory, file or mongo)", cfg.Backend)
}
