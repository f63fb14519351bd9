package types

type Method string

const (
	Get    Method = "GET"
	Head   Method = "HEAD"
	Post   Method = "POST"
	Put    Method = "PUT"
	Delete Method = "DELETE"
)

// Methods lists every method the server recognizes.
var Methods = []Method{Get, Head, Post, Put, Delete}

// ParseMethod matches s exactly (case-sensitive) against the recognized methods.
func ParseMethod(s string) (Method, bool) {
	m := Method(s)
	return m, m.Valid()
}

func (m Method) Valid() bool {
	switch m {
	case Get, Head, Post, Put, Delete:
		return true
	}
	return false
}

// Handler serves one exchange. It is expected to call exactly one response
// emission method on c; the returned code is only logged.
type Handler func(c *Context) int
