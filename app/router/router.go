package router

import (
	"strings"

	"github.com/xavierroma/nhttp/app/segmenttree"
	"github.com/xavierroma/nhttp/app/types"
)

// Router resolves request paths to handlers. Register is only called while
// the server is being configured; Match is safe to call afterwards from any
// number of connections.
type Router interface {
	Register(method types.Method, path string, handler types.Handler) error

	Match(method types.Method, path string) segmenttree.Result
}

func New() Router {
	return newTreeRouter()
}

// SplitTarget separates a request target into its path and query string.
// The query runs from the first '?' up to the first '#' after it; anything
// from that '#' on is dropped. A '#' with no '?' before it stays in the path.
func SplitTarget(target string) (path, query string) {
	path, query, found := strings.Cut(target, "?")
	if !found {
		return path, ""
	}
	query, _, _ = strings.Cut(query, "#")
	return path, query
}

// TrimSlashes removes one leading and one trailing slash.
func TrimSlashes(path string) string {
	path = strings.TrimPrefix(path, "/")
	return strings.TrimSuffix(path, "/")
}

// Segments splits a path that has already gone through TrimSlashes. The empty
// path is the root and has no segments.
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
