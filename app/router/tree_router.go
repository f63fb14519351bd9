package router

import (
	"fmt"

	"github.com/xavierroma/nhttp/app/segmenttree"
	"github.com/xavierroma/nhttp/app/types"
)

type treeRouter struct {
	tree *segmenttree.SegmentTree
}

func newTreeRouter() *treeRouter {
	return &treeRouter{
		tree: segmenttree.NewSegmentTree(),
	}
}

func (r *treeRouter) Register(method types.Method, path string, handler types.Handler) error {
	if err := r.tree.Insert(method, Segments(TrimSlashes(path)), handler); err != nil {
		return fmt.Errorf("registering %s %s: %w", method, path, err)
	}
	return nil
}

func (r *treeRouter) Match(method types.Method, path string) segmenttree.Result {
	return r.tree.Search(method, Segments(TrimSlashes(path)))
}
