package archive

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/percussion/deployer/pkg/errors"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	Compression Compression
	Generator   string         // recorded in the header, e.g. "deployer v1.2.0"
	Progress    func(Progress) // called after each entry; may be nil
	Now         func() time.Time
}

// Writer writes an archive entry by entry. Entries are stored in the order
// they are written, which is the order they will be installed in.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	buf      *bufio.Writer
	enc      *zstd.Encoder
	cw       *CountingWriter
	entries  int
	progress func(Progress)
	closed   bool
	err      error // first write failure; the archive is unusable after it
}

// NewWriter writes the archive header to w and returns a Writer for the
// entries. Close must be called to complete the archive.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	comp, err := ParseCompression(string(opts.Compression))
	if err != nil {
		return nil, err
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	hdr, err := json.Marshal(Header{
		FormatVersion: FormatVersion,
		Created:       now().UTC(),
		Compression:   comp,
		Generator:     opts.Generator,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode archive header")
	}

	aw := &Writer{buf: bufio.NewWriter(w), progress: opts.Progress}
	head := append([]byte(Magic), putUint32(nil, len(hdr))...)
	if _, err := aw.buf.Write(append(head, hdr...)); err != nil {
		return nil, err
	}

	var body io.Writer = aw.buf
	if comp == CompressionZstd {
		aw.enc, err = zstd.NewWriter(aw.buf)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "create zstd encoder")
		}
		body = aw.enc
	}
	aw.cw = NewCountingWriter(body)
	return aw, nil
}

// WriteEntry appends one entry. The context is checked before anything is
// written, so cancellation never leaves a partially written entry behind.
// On success e.Size holds the counted entry size.
func (w *Writer) WriteEntry(ctx context.Context, e *Entry) error {
	if w.closed {
		return errors.New(errors.ErrCodeInternal, "write to closed archive")
	}
	if w.err != nil {
		return w.err
	}
	if err := ctx.Err(); err != nil {
		return errors.Canceled(err)
	}
	rec, err := newRecord(e)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode entry %s", e.Key())
	}

	start := w.cw.Count()
	sum := sha256.New()
	out := io.MultiWriter(w.cw, sum)

	chunks := [][]byte{putUint32(nil, len(data)), data}
	if p := e.Payload; p != nil {
		chunks = append(chunks, p.Data)
		for _, f := range p.Files {
			chunks = append(chunks, f.Data)
		}
	}
	for _, c := range chunks {
		if _, err := out.Write(c); err != nil {
			return w.fail(err, e)
		}
	}

	n := w.cw.Count() - start
	if want := rec.size(len(data)); n != want {
		return w.fail(errors.New(errors.ErrCodeInternal, "wrote %d bytes, expected %d", n, want), e)
	}
	trailer := binary.BigEndian.AppendUint64(make([]byte, 0, trailerLen), uint64(n))
	if _, err := w.cw.Write(sum.Sum(trailer)); err != nil {
		return w.fail(err, e)
	}

	e.Size = n
	w.entries++
	if w.progress != nil {
		w.progress(Progress{Entries: w.entries, Bytes: w.cw.Count(), Key: e.Key()})
	}
	return nil
}

func (w *Writer) fail(err error, e *Entry) error {
	w.err = errors.AtDependency(string(e.Dependency.Type), e.Dependency.ID, err)
	return w.err
}

// Entries returns the number of entries written.
func (w *Writer) Entries() int { return w.entries }

// Count returns the number of uncompressed stream bytes written.
func (w *Writer) Count() int64 { return w.cw.Count() }

// Close writes the end marker and entry count and flushes all buffers.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	end := putUint32(putUint32(nil, 0), w.entries)
	if _, err := w.cw.Write(end); err != nil {
		return err
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

// File is a Writer backed by a temporary file that only appears at its
// final path once Commit succeeds.
type File struct {
	*Writer
	f    *os.File
	path string
	done bool
}

// Create starts an archive that will be written to path. The data goes to a
// temporary file in the same directory; call Commit to publish it or Abort
// to discard it.
func Create(path string, opts WriterOptions) (*File, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "archive path cannot be empty")
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".deployer-*.tmp")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create archive %s", path)
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &File{Writer: w, f: f, path: path}, nil
}

// Commit completes the archive and renames it to its final path. If any
// step fails the temporary file is removed.
func (a *File) Commit() error {
	if a.done {
		return errors.New(errors.ErrCodeInternal, "archive %s already finished", a.path)
	}
	a.done = true
	err := a.Writer.Close()
	if err == nil {
		err = a.f.Sync()
	}
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(a.f.Name(), a.path)
	}
	if err != nil {
		_ = os.Remove(a.f.Name())
		return errors.Wrap(errors.ErrCodeInternal, err, "write archive %s", a.path)
	}
	return nil
}

// Abort discards the archive. It is a no-op after Commit, so it can be
// deferred.
func (a *File) Abort() {
	if a.done {
		return
	}
	a.done = true
	if a.enc != nil {
		_ = a.enc.Close()
	}
	_ = a.f.Close()
	_ = os.Remove(a.f.Name())
}

// Write creates an archive at path containing entries in order. On any
// failure, including cancellation, no file is left at path.
func Write(ctx context.Context, path string, entries []*Entry, opts WriterOptions) error {
	a, err := Create(path, opts)
	if err != nil {
		return err
	}
	defer a.Abort()

	for _, e := range entries {
		if err := a.WriteEntry(ctx, e); err != nil {
			return err
		}
	}
	return a.Commit()
}
