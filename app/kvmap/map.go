// Package kvmap is a chained hash map of short strings used for request
// headers, response headers, query parameters and path variables.
package kvmap

import (
	"errors"
	"fmt"
	"io"
)

const (
	// Bins is the default bucket count.
	Bins = 256
	// MaxKeySize and MaxValueSize bound the byte length of keys and values
	// produced by the parsing constructors.
	MaxKeySize   = 1023
	MaxValueSize = 1023
)

var ErrTooLarge = errors.New("kvmap: key or value exceeds size limit")

// Entry is a key/value pair stored in a bucket chain.
type Entry struct {
	Key   string
	Value string
}

// Map keeps each bucket as a slice; a bucket's entries form its chain in
// insertion order. Keys are unique within a Map.
type Map struct {
	bins [][]Entry
	size int
}

func New() *Map {
	return NewWithBins(Bins)
}

func NewWithBins(bins int) *Map {
	if bins < 1 {
		bins = 1
	}
	return &Map{bins: make([][]Entry, bins)}
}

// djb2 hash: h = h*33 + c, starting at 5381, wrapping at 32 bits.
func hash(key string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(key); i++ {
		h = (h << 5) + h + uint32(key[i])
	}
	return h
}

func (m *Map) bin(key string) int {
	return int(hash(key) % uint32(len(m.bins)))
}

// Set stores value under key, overwriting the value in place if key is
// already present in its chain and appending to the chain tail otherwise.
func (m *Map) Set(key, value string) {
	b := m.bin(key)
	chain := m.bins[b]
	for i := range chain {
		if chain[i].Key == key {
			chain[i].Value = value
			return
		}
	}
	m.bins[b] = append(chain, Entry{Key: key, Value: value})
	m.size++
}

func (m *Map) Get(key string) (string, bool) {
	for _, e := range m.bins[m.bin(key)] {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Remove unlinks key from its chain; removing a missing key is a no-op.
func (m *Map) Remove(key string) {
	b := m.bin(key)
	chain := m.bins[b]
	for i := range chain {
		if chain[i].Key == key {
			m.bins[b] = append(chain[:i], chain[i+1:]...)
			m.size--
			return
		}
	}
}

func (m *Map) Len() int {
	return m.size
}

// Range calls fn for every entry in bucket order, stopping when fn returns false.
func (m *Map) Range(fn func(key, value string) bool) {
	for _, chain := range m.bins {
		for _, e := range chain {
			if !fn(e.Key, e.Value) {
				return
			}
		}
	}
}

// Clear drops every entry and keeps the bucket array.
func (m *Map) Clear() {
	for i := range m.bins {
		m.bins[i] = nil
	}
	m.size = 0
}

// ToMap copies the entries into a native map.
func (m *Map) ToMap() map[string]string {
	out := make(map[string]string, m.size)
	m.Range(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

// WriteHeaders serializes every entry as an HTTP header line "Key: Value\r\n".
func (m *Map) WriteHeaders(w io.Writer) error {
	var err error
	m.Range(func(k, v string) bool {
		_, err = fmt.Fprintf(w, "%s: %s\r\n", k, v)
		return err == nil
	})
	return err
}

func checkSize(key, value string) error {
	if len(key) > MaxKeySize || len(value) > MaxValueSize {
		return fmt.Errorf("%w: key %d bytes, value %d bytes", ErrTooLarge, len(key), len(value))
	}
	return nil
}
