package archive

import (
	"io"
	"sync/atomic"
)

// CountingReader wraps an io.Reader and counts the bytes actually read
// through it. The count only grows and is safe to read from another
// goroutine, e.g. a progress reporter.
type CountingReader struct {
	r io.Reader
	n atomic.Int64
}

// NewCountingReader returns a CountingReader reading from r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// ReadByte implements io.ByteReader.
func (c *CountingReader) ReadByte() (byte, error) {
	if br, ok := c.r.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err == nil {
			c.n.Add(1)
		}
		return b, err
	}
	var buf [1]byte
	if _, err := io.ReadFull(c, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Count returns the number of bytes read so far.
func (c *CountingReader) Count() int64 { return c.n.Load() }

// CountingWriter wraps an io.Writer and counts the bytes actually written
// through it.
type CountingWriter struct {
	w io.Writer
	n atomic.Int64
}

// NewCountingWriter returns a CountingWriter writing to w.
func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{w: w}
}

// Write implements io.Writer. Short writes are counted as the bytes the
// underlying writer accepted.
func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// WriteByte implements io.ByteWriter.
func (c *CountingWriter) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

// WriteString implements io.StringWriter.
func (c *CountingWriter) WriteString(s string) (int, error) {
	if sw, ok := c.w.(io.StringWriter); ok {
		n, err := sw.WriteString(s)
		c.n.Add(int64(n))
		return n, err
	}
	return c.Write([]byte(s))
}

// Count returns the number of bytes written so far.
func (c *CountingWriter) Count() int64 { return c.n.Load() }
