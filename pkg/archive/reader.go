package archive

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Progress func(Progress) // called after each verified entry; may be nil
}

// Reader reads and verifies archive entries in stored order.
//
// Every entry is checked before it is returned: the bytes counted on the
// stream must match both the length the entry declares and the length
// recorded in its trailer, and the trailer checksum must match. Any mismatch,
// truncation or decoding failure is an ARCHIVE_INTEGRITY error.
type Reader struct {
	dec      *zstd.Decoder
	cr       *CountingReader
	header   Header
	entries  int
	done     bool
	err      error
	progress func(Progress)
	closer   io.Closer
}

// NewReader reads the archive header from r and prepares to read entries.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	br := bufio.NewReader(r)

	head := make([]byte, len(Magic)+4)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, corruptWrap(err, "read archive header")
	}
	if string(head[:len(Magic)]) != Magic {
		return nil, corrupt("not a deployer archive")
	}
	n := binary.BigEndian.Uint32(head[len(Magic):])
	if n == 0 || n > maxHeaderLen {
		return nil, corrupt("header length %d out of range", n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, corruptWrap(err, "read archive header")
	}

	ar := &Reader{progress: opts.Progress}
	if err := json.Unmarshal(raw, &ar.header); err != nil {
		return nil, corruptWrap(err, "decode archive header")
	}
	if err := ar.header.check(); err != nil {
		return nil, err
	}

	var body io.Reader = br
	if ar.header.Compression == CompressionZstd {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, corruptWrap(err, "open zstd stream")
		}
		ar.dec = dec
		body = dec
	}
	ar.cr = NewCountingReader(body)
	return ar, nil
}

// Open opens the archive file at path. Close releases the file.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "archive %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open archive %s", path)
	}
	r, err := NewReader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the archive header.
func (r *Reader) Header() Header { return r.header }

// Count returns the number of uncompressed stream bytes read.
func (r *Reader) Count() int64 { return r.cr.Count() }

// Entries returns the number of entries read so far.
func (r *Reader) Entries() int { return r.entries }

// Next returns the next verified entry. After the last entry it checks the
// end marker and returns io.EOF. The context is checked before each entry.
func (r *Reader) Next(ctx context.Context) (*Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}
	e, err := r.next()
	if err != nil {
		r.err = err
		return nil, err
	}
	if e == nil {
		r.done = true
		return nil, io.EOF
	}
	r.entries++
	if r.progress != nil {
		r.progress(Progress{Entries: r.entries, Bytes: r.cr.Count(), Key: e.Key()})
	}
	return e, nil
}

func (r *Reader) next() (*Entry, error) {
	start := r.cr.Count()
	sum := sha256.New()
	in := io.TeeReader(r.cr, sum)

	var prefix [4]byte
	if _, err := io.ReadFull(in, prefix[:]); err != nil {
		return nil, corruptWrap(err, "entry %d: truncated", r.entries+1)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n == 0 {
		return nil, r.end()
	}
	if n > maxRecordLen {
		return nil, corrupt("entry %d: record length %d out of range", r.entries+1, n)
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(in, raw); err != nil {
		return nil, corruptWrap(err, "entry %d: truncated record", r.entries+1)
	}
	var rec record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return nil, corruptWrap(err, "entry %d: decode record", r.entries+1)
	}
	if err := rec.validate(); err != nil {
		return nil, corruptWrap(err, "entry %d: invalid record", r.entries+1)
	}
	dep, err := rec.dependency()
	if err != nil {
		return nil, corruptWrap(err, "entry %d: invalid record", r.entries+1)
	}
	fail := func(err error, format string, args ...any) error {
		return errors.AtDependency(string(dep.Type), dep.ID, corruptWrap(err, format, args...))
	}

	p := &deps.Payload{}
	if p.Data, err = readN(in, rec.PayloadLen); err != nil {
		return nil, fail(err, "truncated payload")
	}
	for _, f := range rec.Files {
		data, err := readN(in, f.Len)
		if err != nil {
			return nil, fail(err, "truncated data file %q", f.Name)
		}
		p.Files = append(p.Files, deps.DataFile{Name: f.Name, Data: data})
	}

	counted := r.cr.Count() - start
	var trailer [trailerLen]byte
	if _, err := io.ReadFull(r.cr, trailer[:]); err != nil {
		return nil, fail(err, "truncated trailer")
	}
	declared := int64(binary.BigEndian.Uint64(trailer[:8]))
	if want := rec.size(int(n)); counted != want || declared != counted {
		return nil, fail(nil, "length mismatch: counted %d bytes, record declares %d, trailer declares %d", counted, want, declared)
	}
	if !bytes.Equal(sum.Sum(nil), trailer[8:]) {
		return nil, fail(nil, "checksum mismatch")
	}
	return &Entry{Dependency: dep, Payload: p, Size: counted}, nil
}

// readN reads exactly n bytes. The buffer grows with the bytes actually
// read, so a forged length cannot force a large allocation up front.
func readN(r io.Reader, n int64) ([]byte, error) {
	var buf bytes.Buffer
	if n <= bytes.MinRead {
		buf.Grow(int(n))
	}
	got, err := io.CopyN(&buf, r, n)
	if got < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// end verifies the end marker and that nothing follows it.
func (r *Reader) end() error {
	var cnt [4]byte
	if _, err := io.ReadFull(r.cr, cnt[:]); err != nil {
		return corruptWrap(err, "truncated end marker")
	}
	if got := int(binary.BigEndian.Uint32(cnt[:])); got != r.entries {
		return corrupt("end marker declares %d entries, read %d", got, r.entries)
	}
	var extra [1]byte
	if n, err := r.cr.Read(extra[:]); n > 0 || (err != nil && err != io.EOF) {
		if err != nil {
			return corruptWrap(err, "read past end marker")
		}
		return corrupt("unexpected data after end marker")
	}
	return nil
}

// Close releases the decoder and, for archives opened with Open, the file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// ReadAll reads and verifies every entry of the archive at path.
func ReadAll(ctx context.Context, path string) (Header, []*Entry, error) {
	r, err := Open(path, ReaderOptions{})
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()

	var entries []*Entry
	for {
		e, err := r.Next(ctx)
		if err == io.EOF {
			return r.Header(), entries, nil
		}
		if err != nil {
			return Header{}, nil, err
		}
		entries = append(entries, e)
	}
}
