package archive

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
)

// Magic opens every archive.
const Magic = "DPKG"

// FormatVersion is the version written into new archives.
const FormatVersion = "1.0.0"

// SupportedVersions is the range of format versions this package reads.
const SupportedVersions = "^1.0.0"

const (
	maxHeaderLen = 64 << 10
	maxRecordLen = 16 << 20
	maxFiles     = 4096
	trailerLen   = 8 + sha256.Size
)

var supported = func() *semver.Constraints {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(err)
	}
	return c
}()

// Compression selects how the entry stream is encoded.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown archive compression %q (want none or zstd)", s)
}

// Header describes an archive. It is stored uncompressed right after the
// magic bytes.
type Header struct {
	FormatVersion string      `json:"format_version"`
	Created       time.Time   `json:"created"`
	Compression   Compression `json:"compression"`
	Generator     string      `json:"generator,omitempty"`
}

func (h Header) check() error {
	v, err := semver.NewVersion(h.FormatVersion)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveIntegrity, err, "invalid format version %q", h.FormatVersion)
	}
	if !supported.Check(v) {
		return errors.New(errors.ErrCodeUnsupported, "archive format %s is not supported (want %s)", v, SupportedVersions)
	}
	if _, err := ParseCompression(string(h.Compression)); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveIntegrity, err, "invalid header")
	}
	return nil
}

// Entry is one archived dependency with its payload.
type Entry struct {
	// Dependency carries type, id, display name and the inclusion flag.
	// Its Dependencies are stubs holding only child keys.
	Dependency *deps.Dependency

	// Payload is the exporter's serialized object and data files.
	Payload *deps.Payload

	// Size is the number of bytes the entry occupies in the uncompressed
	// stream, excluding its trailer. It is set by Writer.WriteEntry and
	// Reader.Next from the bytes counted on the stream.
	Size int64
}

// Key returns the entry's dependency key.
func (e *Entry) Key() deps.Key { return e.Dependency.Key() }

// record is the JSON descriptor preceding an entry's payload bytes.
type record struct {
	Type         string       `json:"type"`
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name,omitempty"`
	Included     bool         `json:"included"`
	Dependencies []string     `json:"dependencies,omitempty"`
	PayloadLen   int64        `json:"payload_len"`
	Files        []fileRecord `json:"files,omitempty"`
}

type fileRecord struct {
	Name string `json:"name"`
	Len  int64  `json:"len"`
}

func newRecord(e *Entry) (*record, error) {
	d := e.Dependency
	if d == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "archive entry without dependency")
	}
	if err := d.Key().Validate(); err != nil {
		return nil, err
	}
	rec := &record{
		Type:        string(d.Type),
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Included:    d.IsIncluded,
	}
	for _, k := range d.ChildKeys() {
		rec.Dependencies = append(rec.Dependencies, k.String())
	}
	if p := e.Payload; p != nil {
		rec.PayloadLen = int64(len(p.Data))
		if len(p.Files) > maxFiles {
			return nil, errors.New(errors.ErrCodeInvalidInput, "%s: %d data files exceed the limit of %d", d.Key(), len(p.Files), maxFiles)
		}
		seen := make(map[string]bool, len(p.Files))
		for _, f := range p.Files {
			if err := errors.ValidateDataFileName(f.Name); err != nil {
				return nil, err
			}
			if seen[f.Name] {
				return nil, errors.New(errors.ErrCodeInvalidInput, "%s: duplicate data file %q", d.Key(), f.Name)
			}
			seen[f.Name] = true
			rec.Files = append(rec.Files, fileRecord{Name: f.Name, Len: int64(len(f.Data))})
		}
	}
	return rec, nil
}

// size returns the number of entry bytes the record declares: length
// prefix, record, payload and files.
func (r *record) size(recordLen int) int64 {
	n := int64(4+recordLen) + r.PayloadLen
	for _, f := range r.Files {
		n += f.Len
	}
	return n
}

func (r *record) validate() error {
	k := deps.K(deps.Type(r.Type), r.ID)
	if err := k.Validate(); err != nil {
		return err
	}
	if r.PayloadLen < 0 || r.PayloadLen > maxRecordLen*64 {
		return fmt.Errorf("payload length %d out of range", r.PayloadLen)
	}
	if len(r.Files) > maxFiles {
		return fmt.Errorf("%d data files exceed the limit of %d", len(r.Files), maxFiles)
	}
	seen := make(map[string]bool, len(r.Files))
	for _, f := range r.Files {
		if err := errors.ValidateDataFileName(f.Name); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate data file %q", f.Name)
		}
		seen[f.Name] = true
		if f.Len < 0 || f.Len > maxRecordLen*64 {
			return fmt.Errorf("data file %q length %d out of range", f.Name, f.Len)
		}
	}
	return nil
}

func (r *record) dependency() (*deps.Dependency, error) {
	d := &deps.Dependency{
		Type:        deps.Type(r.Type),
		ID:          r.ID,
		DisplayName: r.DisplayName,
		IsIncluded:  r.Included,
	}
	for _, s := range r.Dependencies {
		k, err := deps.ParseKey(s)
		if err != nil {
			return nil, err
		}
		d.Dependencies = append(d.Dependencies, &deps.Dependency{Type: k.Type, ID: k.ID})
	}
	return d, nil
}

// Progress reports archive I/O after each entry.
type Progress struct {
	Entries int      // entries completed
	Bytes   int64    // uncompressed stream bytes so far
	Key     deps.Key // the entry just completed
}

func putUint32(b []byte, v int) []byte { return binary.BigEndian.AppendUint32(b, uint32(v)) }

func corrupt(format string, args ...any) error {
	return errors.New(errors.ErrCodeArchiveIntegrity, format, args...)
}

func corruptWrap(err error, format string, args ...any) error {
	if errors.IsCanceled(err) {
		return err
	}
	return errors.Wrap(errors.ErrCodeArchiveIntegrity, err, format, args...)
}
