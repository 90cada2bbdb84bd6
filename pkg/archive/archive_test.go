package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
)

var fixed = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func sampleEntries() []*Entry {
	kw := &deps.Dependency{Type: "Keyword", ID: "K1", DisplayName: "Topics"}
	ct := &deps.Dependency{
		Type: "ContentType", ID: "article", DisplayName: "Article", IsIncluded: true,
		Dependencies: []*deps.Dependency{{Type: "Keyword", ID: "K1"}},
	}
	return []*Entry{
		{Dependency: kw, Payload: &deps.Payload{Data: []byte(`{"label":"Topics"}`)}},
		{Dependency: ct, Payload: &deps.Payload{
			Data: []byte(`{"name":"article"}`),
			Files: []deps.DataFile{
				{Name: "templates/body.html", Data: []byte("<p>{{body}}</p>")},
				{Name: "icon.png", Data: bytes.Repeat([]byte{0x89}, 300)},
			},
		}},
		{Dependency: &deps.Dependency{Type: "Role", ID: "Editor"}},
	}
}

func encode(t *testing.T, entries []*Entry, comp Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Compression: comp, Now: fixed, Generator: "test"})
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	for _, e := range entries {
		if err := w.WriteEntry(context.Background(), e); err != nil {
			t.Fatalf("WriteEntry(%s) error: %v", e.Key(), err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	return buf.Bytes()
}

func decode(data []byte) ([]*Entry, error) {
	r, err := NewReader(bytes.NewReader(data), ReaderOptions{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var out []*Entry
	for {
		e, err := r.Next(context.Background())
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionZstd} {
		t.Run(string(comp), func(t *testing.T) {
			in := sampleEntries()
			data := encode(t, in, comp)

			out, err := decode(data)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if len(out) != len(in) {
				t.Fatalf("read %d entries, want %d", len(out), len(in))
			}
			for i := range in {
				want, got := in[i], out[i]
				if got.Key() != want.Key() {
					t.Errorf("entry %d key = %v, want %v", i, got.Key(), want.Key())
				}
				if got.Dependency.DisplayName != want.Dependency.DisplayName || got.Dependency.IsIncluded != want.Dependency.IsIncluded {
					t.Errorf("entry %d dependency = %+v, want %+v", i, got.Dependency, want.Dependency)
				}
				if got.Size != want.Size || got.Size == 0 {
					t.Errorf("entry %d size: read %d, wrote %d", i, got.Size, want.Size)
				}
				var wantData []byte
				var wantFiles []deps.DataFile
				if want.Payload != nil {
					wantData, wantFiles = want.Payload.Data, want.Payload.Files
				}
				if !bytes.Equal(got.Payload.Data, wantData) {
					t.Errorf("entry %d payload = %q, want %q", i, got.Payload.Data, wantData)
				}
				if len(got.Payload.Files) != len(wantFiles) {
					t.Fatalf("entry %d files = %d, want %d", i, len(got.Payload.Files), len(wantFiles))
				}
				for j, f := range wantFiles {
					if got.Payload.Files[j].Name != f.Name || !bytes.Equal(got.Payload.Files[j].Data, f.Data) {
						t.Errorf("entry %d file %d = %q, want %q", i, j, got.Payload.Files[j].Name, f.Name)
					}
				}
			}
			if keys := out[1].Dependency.ChildKeys(); len(keys) != 1 || keys[0] != deps.K("Keyword", "K1") {
				t.Errorf("child keys = %v", keys)
			}
		})
	}
}

func TestCountsMatch(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Compression: CompressionZstd})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range sampleEntries() {
		if err := w.WriteEntry(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for {
		if _, err := r.Next(context.Background()); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}
	if r.Count() != w.Count() {
		t.Errorf("read %d stream bytes, wrote %d", r.Count(), w.Count())
	}
	if r.Entries() != w.Entries() {
		t.Errorf("read %d entries, wrote %d", r.Entries(), w.Entries())
	}
}

func TestEmptyArchive(t *testing.T) {
	out, err := decode(encode(t, nil, CompressionNone))
	if err != nil || len(out) != 0 {
		t.Errorf("decode(empty) = %v, %v", out, err)
	}
}

func TestTruncated(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionZstd} {
		t.Run(string(comp), func(t *testing.T) {
			data := encode(t, sampleEntries(), comp)
			for cut := 0; cut < len(data); cut += max(1, len(data)/97) {
				_, err := decode(data[:cut])
				if err == nil {
					t.Fatalf("decode of %d/%d bytes succeeded", cut, len(data))
				}
				if !errors.Is(err, errors.ErrCodeArchiveIntegrity) {
					t.Fatalf("cut at %d: error = %v, want ARCHIVE_INTEGRITY", cut, err)
				}
			}
		})
	}
}

func TestCorrupted(t *testing.T) {
	data := encode(t, sampleEntries(), CompressionNone)
	hdrEnd := len(Magic) + 4 + int(binary.BigEndian.Uint32(data[len(Magic):]))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"payload byte flipped", func(b []byte) []byte {
			i := bytes.Index(b, []byte("Topics\"}"))
			b[i] ^= 0xff
			return b
		}},
		{"trailer length changed", func(b []byte) []byte {
			// the first entry's trailer follows its payload
			i := bytes.Index(b[hdrEnd:], []byte(`{"label":"Topics"}`)) + hdrEnd + len(`{"label":"Topics"}`)
			b[i+7]++
			return b
		}},
		{"entry count changed", func(b []byte) []byte { b[len(b)-1]++; return b }},
		{"trailing garbage", func(b []byte) []byte { return append(b, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(tt.mutate(bytes.Clone(data)))
			if !errors.Is(err, errors.ErrCodeArchiveIntegrity) {
				t.Errorf("error = %v, want ARCHIVE_INTEGRITY", err)
			}
		})
	}
}

func TestCorruptedNamesDependency(t *testing.T) {
	data := encode(t, sampleEntries(), CompressionNone)
	i := bytes.Index(data, []byte("<p>"))
	data[i] = '['

	_, err := decode(data)
	typ, id, ok := errors.FailedDependency(err)
	if !ok || typ != "ContentType" || id != "article" {
		t.Errorf("FailedDependency() = %q, %q, %v (err %v)", typ, id, ok, err)
	}
}

// rawArchive builds an uncompressed archive holding one hand-written record
// followed by body.
func rawArchive(rec string, body []byte) []byte {
	hdr := `{"format_version":"1.0.0","created":"2024-05-01T12:00:00Z","compression":"none"}`
	var b bytes.Buffer
	b.WriteString(Magic)
	_ = binary.Write(&b, binary.BigEndian, uint32(len(hdr)))
	b.WriteString(hdr)
	_ = binary.Write(&b, binary.BigEndian, uint32(len(rec)))
	b.WriteString(rec)
	b.Write(body)
	return b.Bytes()
}

func TestForgedLengthDoesNotAllocate(t *testing.T) {
	tests := []struct {
		name string
		rec  string
	}{
		{"payload", `{"type":"Keyword","id":"K1","included":true,"payload_len":1073741824}`},
		{"data file", `{"type":"Keyword","id":"K1","included":true,"payload_len":2,"files":[{"name":"a.bin","len":1073741824}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := rawArchive(tt.rec, []byte("{}xyz"))

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := decode(data)
			runtime.ReadMemStats(&after)

			if !errors.Is(err, errors.ErrCodeArchiveIntegrity) {
				t.Fatalf("error = %v, want ARCHIVE_INTEGRITY", err)
			}
			if grown := after.TotalAlloc - before.TotalAlloc; grown > 16<<20 {
				t.Errorf("reading a %d byte archive allocated %d bytes", len(data), grown)
			}
		})
	}
}

func TestDuplicateDataFileRejected(t *testing.T) {
	rec := `{"type":"Keyword","id":"K1","included":true,"payload_len":0,"files":[{"name":"a.txt","len":1},{"name":"a.txt","len":1}]}`
	_, err := decode(rawArchive(rec, []byte("ab")))
	if !errors.Is(err, errors.ErrCodeArchiveIntegrity) {
		t.Fatalf("error = %v, want ARCHIVE_INTEGRITY", err)
	}
	if !strings.Contains(err.Error(), "duplicate data file") {
		t.Errorf("error = %v, want duplicate data file", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	hdr := `{"format_version":"2.0.0","created":"2024-05-01T12:00:00Z","compression":"none"}`
	var b bytes.Buffer
	b.WriteString(Magic)
	_ = binary.Write(&b, binary.BigEndian, uint32(len(hdr)))
	b.WriteString(hdr)

	_, err := NewReader(&b, ReaderOptions{})
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("NewReader() error = %v, want UNSUPPORTED", err)
	}
}

func TestWriteEntryValidation(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
	}{
		{"nil dependency", &Entry{}},
		{"bad key", &Entry{Dependency: &deps.Dependency{Type: "Key word", ID: "x"}}},
		{"traversal", &Entry{Dependency: &deps.Dependency{Type: "T", ID: "x"}, Payload: &deps.Payload{
			Files: []deps.DataFile{{Name: "../etc/passwd"}},
		}}},
		{"duplicate file", &Entry{Dependency: &deps.Dependency{Type: "T", ID: "x"}, Payload: &deps.Payload{
			Files: []deps.DataFile{{Name: "a"}, {Name: "a"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWriter(io.Discard, WriterOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if err := w.WriteEntry(context.Background(), tt.entry); err == nil {
				t.Error("WriteEntry() succeeded, want error")
			}
			if w.Entries() != 0 || w.Count() != 0 {
				t.Errorf("rejected entry wrote %d bytes", w.Count())
			}
		})
	}
}

func TestWriteCanceledLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.dpkg")

	ctx, cancel := context.WithCancel(context.Background())
	entries := sampleEntries()
	calls := 0
	opts := WriterOptions{Progress: func(Progress) {
		calls++
		if calls == 1 {
			cancel()
		}
	}}

	err := Write(ctx, path, entries, opts)
	if !errors.IsCanceled(err) {
		t.Fatalf("Write() error = %v, want canceled", err)
	}
	assertEmptyDir(t, dir)
}

func TestWriteCommits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.dpkg")
	if err := Write(context.Background(), path, sampleEntries(), WriterOptions{Compression: CompressionZstd}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	hdr, entries, err := ReadAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if hdr.Compression != CompressionZstd || hdr.FormatVersion != FormatVersion {
		t.Errorf("header = %+v", hdr)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d, want 3", len(entries))
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("directory holds %d files, want only the archive", len(files))
	}
}

func TestReaderCanceled(t *testing.T) {
	r, err := NewReader(bytes.NewReader(encode(t, sampleEntries(), CompressionNone)), ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := r.Next(ctx); !errors.IsCanceled(err) {
		t.Errorf("Next() error = %v, want canceled", err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.dpkg"), ReaderOptions{})
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Open() error = %v, want NOT_FOUND", err)
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "zstd": CompressionZstd} {
		if got, err := ParseCompression(in); err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCompression("gzip"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ParseCompression(gzip) error = %v", err)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	if len(names) != 0 {
		t.Errorf("directory not empty: %s", strings.Join(names, ", "))
	}
}
