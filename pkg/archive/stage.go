package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
)

// Staged is an archive that has been fully read, verified and unpacked into
// a staging directory. Nothing has been installed yet.
type Staged struct {
	Dir     string
	Header  Header
	Entries []StagedEntry
	Bytes   int64 // uncompressed stream bytes verified
}

// StagedEntry is one unpacked entry.
type StagedEntry struct {
	Dependency *deps.Dependency
	Size       int64
	dir        string
	files      []string
}

// Key returns the entry's dependency key.
func (e *StagedEntry) Key() deps.Key { return e.Dependency.Key() }

// Files returns the names of the entry's data files in archive order.
func (e *StagedEntry) Files() []string { return e.files }

// Payload loads the entry's payload from the staging directory.
func (e *StagedEntry) Payload() (*deps.Payload, error) {
	data, err := os.ReadFile(filepath.Join(e.dir, "payload"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load staged payload for %s", e.Key())
	}
	p := &deps.Payload{Data: data}
	for _, name := range e.files {
		b, err := os.ReadFile(filepath.Join(e.dir, "files", filepath.FromSlash(name)))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "load staged file %q for %s", name, e.Key())
		}
		p.Files = append(p.Files, deps.DataFile{Name: name, Data: b})
	}
	return p, nil
}

// Remove deletes the staging directory.
func (s *Staged) Remove() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Stage reads the archive at path, verifies every entry and unpacks it into
// a fresh directory created under parent (the system temp dir if parent is
// empty). It returns only after the whole archive has been verified; on any
// failure, including cancellation between entries, the staging directory is
// removed and nothing is returned.
func Stage(ctx context.Context, path, parent string, opts ReaderOptions) (_ *Staged, err error) {
	r, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create staging parent %s", parent)
		}
	}
	dir, err := os.MkdirTemp(parent, "deployer-stage-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create staging directory")
	}
	s := &Staged{Dir: dir, Header: r.Header()}
	defer func() {
		if err != nil {
			_ = s.Remove()
		}
	}()

	for {
		e, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, err := s.unpack(len(s.Entries), e)
		if err != nil {
			return nil, err
		}
		s.Entries = append(s.Entries, se)
	}
	s.Bytes = r.Count()
	return s, nil
}

func (s *Staged) unpack(i int, e *Entry) (StagedEntry, error) {
	se := StagedEntry{
		Dependency: e.Dependency,
		Size:       e.Size,
		dir:        filepath.Join(s.Dir, fmt.Sprintf("%05d", i)),
	}
	if err := os.MkdirAll(se.dir, 0o755); err != nil {
		return se, errors.Wrap(errors.ErrCodeInternal, err, "stage %s", e.Key())
	}
	if err := os.WriteFile(filepath.Join(se.dir, "payload"), e.Payload.Data, 0o644); err != nil {
		return se, errors.Wrap(errors.ErrCodeInternal, err, "stage %s", e.Key())
	}
	for _, f := range e.Payload.Files {
		if err := errors.ValidateDataFileName(f.Name); err != nil {
			return se, errors.AtDependency(string(e.Dependency.Type), e.Dependency.ID, err)
		}
		dst := filepath.Join(se.dir, "files", filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return se, errors.Wrap(errors.ErrCodeInternal, err, "stage %s", e.Key())
		}
		if err := os.WriteFile(dst, f.Data, 0o644); err != nil {
			return se, errors.Wrap(errors.ErrCodeInternal, err, "stage %s", e.Key())
		}
		se.files = append(se.files, f.Name)
	}
	return se, nil
}
