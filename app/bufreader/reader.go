// Package bufreader provides a fixed-capacity read buffer over a byte stream
// with a CRLF line scan used for HTTP request lines and header blocks.
package bufreader

import (
	"errors"
	"io"
)

// Size is the capacity of the read buffer.
const Size = 4096

// DefaultMaxEmptyReads bounds consecutive zero-byte reads in ReadLine and
// ReadFull.
const DefaultMaxEmptyReads = 100

var ErrLineTooLong = errors.New("bufreader: line exceeds limit without CRLF")

// Reader buffers reads from src. Bytes in buf[head:tail] are buffered and not
// yet consumed; tail is the first free index. 0 <= head <= tail <= Size.
type Reader struct {
	src           io.Reader
	buf           [Size]byte
	head, tail    int
	maxEmptyReads int
}

func New(src io.Reader) *Reader {
	return &Reader{src: src, maxEmptyReads: DefaultMaxEmptyReads}
}

// SetMaxEmptyReads sets how many consecutive zero-byte reads ReadLine and
// ReadFull tolerate before failing with io.ErrNoProgress.
func (r *Reader) SetMaxEmptyReads(n int) {
	if n < 1 {
		n = 1
	}
	r.maxEmptyReads = n
}

// Buffered returns the number of bytes that can be read without touching src.
func (r *Reader) Buffered() int {
	return r.tail - r.head
}

// Read copies up to len(p) bytes into p. If fewer bytes are buffered and the
// buffer still has free space after tail, exactly one read into [tail, Size)
// is issued first. Read may return fewer bytes than requested; callers loop.
// It returns 0, io.EOF when the stream ended and nothing is buffered, and the
// underlying error when the read fails.
func (r *Reader) Read(p []byte) (int, error) {
	if r.head == Size && r.tail == Size {
		r.head, r.tail = 0, 0
	}

	if r.tail-r.head < len(p) && r.tail != Size {
		n, err := r.src.Read(r.buf[r.tail:])
		if n < 0 {
			n = 0
		}
		r.tail += n
		if err != nil && (err != io.EOF || r.tail == r.head) {
			return 0, err
		}
	}

	n := copy(p, r.buf[r.head:r.tail])
	r.head += n
	return n, nil
}

// readSome is Read with zero-byte reads retried up to the empty-read bound,
// after which it fails with io.ErrNoProgress.
func (r *Reader) readSome(p []byte) (int, error) {
	for empty := 0; ; {
		n, err := r.Read(p)
		if err != nil || n > 0 {
			return n, err
		}
		empty++
		if empty >= r.maxEmptyReads {
			return 0, io.ErrNoProgress
		}
	}
}

// ReadFull reads exactly len(p) bytes. A stream that ends first yields
// io.ErrUnexpectedEOF; n always counts the bytes stored in p.
func (r *Reader) ReadFull(p []byte) (int, error) {
	read := 0
	for read < len(p) {
		n, err := r.readSome(p[read:])
		read += n
		if err == io.EOF {
			return read, io.ErrUnexpectedEOF
		}
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// ReadLine reads single bytes until it has seen CR LF, returning the line
// including the terminator. A terminator that lands exactly on the limit still
// counts. If max bytes are consumed without a terminator, the consumed bytes
// are returned with ErrLineTooLong.
func (r *Reader) ReadLine(max int) ([]byte, error) {
	line := make([]byte, 0, 128)
	var c [1]byte
	lastCR := false
	for len(line) < max {
		_, err := r.readSome(c[:])
		if err == io.EOF {
			return line, io.ErrUnexpectedEOF
		}
		if err != nil {
			return line, err
		}
		line = append(line, c[0])
		if lastCR && c[0] == '\n' {
			return line, nil
		}
		lastCR = c[0] == '\r'
	}
	return line, ErrLineTooLong
}
