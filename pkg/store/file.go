package store

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/percussion/deployer/pkg/errors"
)

// File is a file-based Store. Objects are stored as JSON documents at
// <dir>/<kind>/<escaped id>.json. The body is kept as a JSON string so Get
// returns exactly the bytes given to Put.
type File struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// NewFile creates a file store rooted at dir.
// If dir is empty, defaults to ~/.config/deployer/objects/
func NewFile(dir string) (*File, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "get home dir")
		}
		dir = filepath.Join(home, ".config", "deployer", "objects")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create store dir")
	}
	return &File{dir: dir, now: time.Now}, nil
}

// Dir returns the store's root directory.
func (s *File) Dir() string { return s.dir }

func (s *File) path(kind, id string) string {
	return filepath.Join(s.dir, kind, url.PathEscape(id)+".json")
}

// fileObject is the on-disk form of an Object. Its Body shadows the
// embedded one.
type fileObject struct {
	*Object
	Body string `json:"body,omitempty"`
}

func (s *File) Get(ctx context.Context, kind, id string) (*Object, error) {
	if errors.ValidateTypeName(kind) != nil || errors.ValidateDependencyID(id) != nil {
		return nil, notFound(kind, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(s.path(kind, id), kind, id)
}

func (s *File) read(path, kind, id string) (*Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(kind, id)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %s", path)
	}
	doc := fileObject{Object: &Object{}}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse %s", path)
	}
	if doc.Body != "" {
		doc.Object.Body = json.RawMessage(doc.Body)
	}
	return doc.Object, nil
}

func (s *File) Put(ctx context.Context, obj *Object) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	c := obj.Clone()
	c.Updated = s.now().UTC()
	data, err := json.MarshalIndent(fileObject{Object: c, Body: string(c.Body)}, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "marshal %s %q", c.Kind, c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(c.Kind, c.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create kind dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return nil
}

func (s *File) List(ctx context.Context, kind string) ([]*Object, error) {
	if errors.ValidateTypeName(kind) != nil {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read kind dir")
	}

	var out []*Object
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		o, err := s.read(filepath.Join(s.dir, kind, name), kind, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	slices.SortFunc(out, byID)
	return out, nil
}

func (s *File) Close() error { return nil }

var _ Store = (*File)(nil)
