package kvmap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xavierroma/nhttp/app/bufreader"
	"github.com/xavierroma/nhttp/app/percent"
)

var ErrMalformed = errors.New("kvmap: malformed input")

// LineReader is the line scan FromHeaders consumes; *bufreader.Reader
// satisfies it.
type LineReader interface {
	ReadLine(max int) ([]byte, error)
}

var _ LineReader = (*bufreader.Reader)(nil)

// FromHeaders reads header lines until the empty line that ends the block.
// Each line is split at its first ':' and exactly one leading space is
// stripped from the value. maxLine bounds every line, terminator included.
func FromHeaders(r LineReader, maxLine int) (*Map, error) {
	m := New()
	for {
		line, err := r.ReadLine(maxLine)
		if err != nil {
			return nil, fmt.Errorf("reading header line: %w", err)
		}
		line = bytes.TrimSuffix(line, []byte("\r\n"))
		if len(line) == 0 {
			return m, nil
		}

		key, value, ok := bytes.Cut(line, []byte(":"))
		if !ok || len(key) == 0 {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformed, line)
		}
		value = bytes.TrimPrefix(value, []byte(" "))
		if err := checkSize(string(key), string(value)); err != nil {
			return nil, err
		}
		m.Set(string(key), string(value))
	}
}

// FromURLEncoded parses a k1=v1&k2=v2 string, decoding both sides of every
// pair. A segment without '=' is dropped; "k=" stores k with an empty value.
func FromURLEncoded(s string) (*Map, error) {
	m := New()
	for _, seg := range strings.Split(s, "&") {
		rawKey, rawValue, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		key, err := percent.Decode(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decoding key %q: %w", rawKey, err)
		}
		value, err := percent.Decode(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decoding value of %q: %w", key, err)
		}
		if err := checkSize(key, value); err != nil {
			return nil, err
		}
		m.Set(key, value)
	}
	return m, nil
}
