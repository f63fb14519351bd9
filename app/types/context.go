package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xavierroma/nhttp/app/bufreader"
	"github.com/xavierroma/nhttp/app/kvmap"
)

var (
	ErrReleased          = errors.New("context already released")
	ErrInvalidBodyLength = errors.New("invalid Content-Length")
)

// DefaultMaxBodySize bounds the Content-Length ReadBody accepts.
const DefaultMaxBodySize = 1 << 20

// Request is the parsed request line.
type Request struct {
	Method  Method
	Target  string // raw request target as sent
	Path    string // target without query, fragment and outer slashes
	Query   string
	Version string
}

// Context is the state of one request/response exchange. It owns the
// connection's buffered reader and the four maps of the exchange, all of
// which are dropped together by Release.
type Context struct {
	w      io.Writer
	reader *bufreader.Reader
	req    Request

	pathParams  *kvmap.Map
	queryParams *kvmap.Map
	reqHeaders  *kvmap.Map
	respHeaders *kvmap.Map

	maxBody  int
	status   int
	released bool
}

func NewContext(w io.Writer, r *bufreader.Reader) *Context {
	return &Context{w: w, reader: r, maxBody: DefaultMaxBodySize}
}

// SetMaxBodySize sets the largest Content-Length ReadBody accepts.
func (c *Context) SetMaxBodySize(n int) {
	c.maxBody = n
}

// Bind attaches the parsed request to c. Nil maps are replaced by empty ones.
func (c *Context) Bind(req Request, pathParams, queryParams, reqHeaders *kvmap.Map) {
	c.req = req
	c.pathParams = orEmpty(pathParams)
	c.queryParams = orEmpty(queryParams)
	c.reqHeaders = orEmpty(reqHeaders)
}

func orEmpty(m *kvmap.Map) *kvmap.Map {
	if m == nil {
		return kvmap.New()
	}
	return m
}

// Release drops the reader and every map of the exchange. Only the first
// call has an effect.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	for _, m := range []*kvmap.Map{c.pathParams, c.queryParams, c.reqHeaders, c.respHeaders} {
		if m != nil {
			m.Clear()
		}
	}
	c.pathParams, c.queryParams, c.reqHeaders, c.respHeaders = nil, nil, nil, nil
	c.reader = nil
}

func (c *Context) Released() bool {
	return c.released
}

func (c *Context) Request() Request {
	return c.req
}

func (c *Context) Method() Method {
	return c.req.Method
}

func (c *Context) Path() string {
	return c.req.Path
}

func (c *Context) Version() string {
	return c.req.Version
}

// Status returns the status code of the response written so far, or 0.
func (c *Context) Status() int {
	return c.status
}

func lookup(m *kvmap.Map, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	return m.Get(key)
}

func (c *Context) RequestHeader(key string) (string, bool) {
	return lookup(c.reqHeaders, key)
}

func (c *Context) PathParam(name string) (string, bool) {
	return lookup(c.pathParams, name)
}

func (c *Context) QueryParam(name string) (string, bool) {
	return lookup(c.queryParams, name)
}

// RequestHeaders returns a copy of the request headers.
func (c *Context) RequestHeaders() map[string]string {
	return orEmpty(c.reqHeaders).ToMap()
}

// PathParams returns a copy of the captured path variables.
func (c *Context) PathParams() map[string]string {
	return orEmpty(c.pathParams).ToMap()
}

// QueryParams returns a copy of the decoded query parameters.
func (c *Context) QueryParams() map[string]string {
	return orEmpty(c.queryParams).ToMap()
}

func (c *Context) responseHeaders() *kvmap.Map {
	if c.respHeaders == nil {
		c.respHeaders = kvmap.New()
	}
	return c.respHeaders
}

func (c *Context) SetResponseHeader(key, value string) {
	c.responseHeaders().Set(key, value)
}

func (c *Context) ResponseHeader(key string) (string, bool) {
	return lookup(c.respHeaders, key)
}

// ReadBody reads Content-Length bytes of request body from the buffered
// reader. A request without Content-Length has an empty body; one whose
// Content-Length exceeds the body limit is refused before anything is read.
func (c *Context) ReadBody() ([]byte, error) {
	if c.released {
		return nil, ErrReleased
	}
	raw, ok := c.RequestHeader("Content-Length")
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBodyLength, raw)
	}
	if n > c.maxBody {
		return nil, fmt.Errorf("%w: %d exceeds limit of %d bytes", ErrInvalidBodyLength, n, c.maxBody)
	}
	body := make([]byte, n)
	read, err := c.reader.ReadFull(body)
	if err != nil {
		return body[:read], fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

// WriteStatus writes a bare status line followed by the empty line.
func (c *Context) WriteStatus(code int) error {
	c.status = code
	_, err := io.WriteString(c.w, StatusLine(code)+"\r\n")
	return err
}

// writeHead writes the status line, the response headers and the empty line.
func (c *Context) writeHead(code int) error {
	if c.released {
		return ErrReleased
	}
	c.status = code
	var head bytes.Buffer
	head.WriteString(StatusLine(code))
	if err := c.responseHeaders().WriteHeaders(&head); err != nil {
		return err
	}
	head.WriteString("\r\n")
	if _, err := c.w.Write(head.Bytes()); err != nil {
		return fmt.Errorf("writing response head: %w", err)
	}
	return nil
}

// Send writes a complete response. Content-Length and Content-Type are filled
// in only when the handler has not set them.
func (c *Context) Send(body []byte, contentType string, code int) error {
	h := c.responseHeaders()
	if _, ok := h.Get("Content-Length"); !ok {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	if _, ok := h.Get("Content-Type"); !ok {
		h.Set("Content-Type", contentType)
	}
	if err := c.writeHead(code); err != nil {
		return err
	}
	if _, err := c.w.Write(body); err != nil {
		return fmt.Errorf("writing response body: %w", err)
	}
	return nil
}

func (c *Context) SendString(s string, code int) error {
	return c.Send([]byte(s), "text/plain", code)
}

func (c *Context) SendHTML(html string, code int) error {
	return c.Send([]byte(html), "text/html", code)
}

func (c *Context) SendBlob(data []byte, contentType string, code int) error {
	return c.Send(data, contentType, code)
}

// Redirect answers 301 when permanent and 302 otherwise, without a body.
func (c *Context) Redirect(location string, permanent bool) error {
	h := c.responseHeaders()
	h.Set("Content-Length", "0")
	h.Set("Location", location)
	code := StatusFound
	if permanent {
		code = StatusMovedPermanently
	}
	return c.writeHead(code)
}

// SendFile streams the file at path. A Range header of the form
// bytes=<start>-[<end>] selects a window of the file; only the first range
// is honored.
func (c *Context) SendFile(path string) error {
	if c.released {
		return ErrReleased
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if werr := c.WriteStatus(StatusInternalServerError); werr != nil {
			return werr
		}
		if err == nil {
			err = fmt.Errorf("%s is a directory", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	h := c.responseHeaders()
	if _, ok := h.Get("Content-Type"); !ok {
		if ctype := mime.TypeByExtension(filepath.Ext(path)); ctype != "" {
			h.Set("Content-Type", ctype)
		}
	}

	rangeHeader, hasRange := c.RequestHeader("Range")
	if !hasRange {
		return c.sendFileWindow(path, StatusOK, 0, size)
	}

	start, end, ok := ParseRange(rangeHeader, size)
	if !ok {
		return c.WriteStatus(StatusRangeNotSatisfiable)
	}
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	return c.sendFileWindow(path, StatusPartialContent, start, end-start+1)
}

func (c *Context) sendFileWindow(path string, code int, offset, count int64) error {
	f, err := os.Open(path)
	if err != nil {
		if werr := c.WriteStatus(StatusInternalServerError); werr != nil {
			return werr
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			if werr := c.WriteStatus(StatusInternalServerError); werr != nil {
				return werr
			}
			return fmt.Errorf("seeking %s: %w", path, err)
		}
	}

	c.responseHeaders().Set("Content-Length", strconv.FormatInt(count, 10))
	if err := c.writeHead(code); err != nil {
		return err
	}
	if _, err := io.CopyN(c.w, f, count); err != nil {
		return fmt.Errorf("streaming %s: %w", path, err)
	}
	return nil
}

// ParseRange reads the first range of a "bytes=<start>-[<end>]" header for a
// file of the given size. A missing end means size-1 and an end past the file
// is clipped. It reports false when start >= end, start >= size, start is
// negative or the header carries no start at all.
func ParseRange(header string, size int64) (start, end int64, ok bool) {
	rest, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	start, rest, found = scanInt(rest)
	if !found {
		return 0, 0, false
	}
	end = size - 1
	if after, dash := strings.CutPrefix(rest, "-"); dash {
		if v, _, got := scanInt(after); got {
			end = v
		}
	}
	if start < 0 || start >= end || start >= size {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}

// scanInt parses a leading, optionally signed decimal integer after any
// leading spaces and returns the remainder of s.
func scanInt(s string) (int64, string, bool) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, s, false
	}
	v, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, s, false
	}
	return v, s[i:], true
}
