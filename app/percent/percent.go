// Package percent implements RFC1738 style %XX escaping of URL components.
package percent

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("percent: malformed escape sequence")

const upperHex = "0123456789ABCDEF"

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// shouldEscape reports whether c is one of the unsafe or reserved characters.
func shouldEscape(c byte) bool {
	switch c {
	case ' ', '<', '>', '"', '#', '%', '{', '}', '|', '\\', '^', '~', '[', ']', '`',
		';', '/', '?', ':', '@', '=', '&':
		return true
	}
	return false
}

// Validate checks that every '%' in s starts a complete triplet of two hex digits.
func Validate(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
			return ErrInvalid
		}
		i += 2
	}
	return nil
}

// NormalizeCase uppercases the hex digits of every triplet, e.g. %a1 -> %A1.
// s must already pass Validate.
func NormalizeCase(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] != '%' {
			continue
		}
		for j := i + 1; j < i+3 && j < len(b); j++ {
			if b[j] >= 'a' && b[j] <= 'f' {
				b[j] -= 'a' - 'A'
			}
		}
		i += 2
	}
	return string(b)
}

// Unescape decodes every triplet to the byte it denotes.
// s must already pass Validate; the result is unspecified otherwise.
func Unescape(s string) string {
	n := strings.Count(s, "%")
	if n == 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			sb.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// Escape encodes the unsafe and reserved characters as uppercase triplets.
// Every other byte is copied unchanged.
func Escape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			sb.WriteByte('%')
			sb.WriteByte(upperHex[c>>4])
			sb.WriteByte(upperHex[c&0x0f])
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Decode runs Validate, NormalizeCase and Unescape in that order.
func Decode(s string) (string, error) {
	if err := Validate(s); err != nil {
		return "", err
	}
	return Unescape(NormalizeCase(s)), nil
}
