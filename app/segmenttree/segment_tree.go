// Package segmenttree maps (method, path segments) to handlers through a
// trie with one node per path segment. A node has any number of static
// children, matched by exact text, and at most one variable child written
// {name} that captures any segment. Static children win over the variable
// child and matching never backtracks.
package segmenttree

import (
	"github.com/xavierroma/nhttp/app/kvmap"
	"github.com/xavierroma/nhttp/app/percent"
	"github.com/xavierroma/nhttp/app/types"
)

// MaxNameSize bounds the byte length of a static segment or variable name.
const MaxNameSize = 511

type SegmentNode struct {
	name     string
	children []*SegmentNode // static, in registration order
	variable *SegmentNode
	handlers map[types.Method]types.Handler
}

// SegmentTree is built once during configuration and only read afterwards,
// so a finished tree may be shared between connections.
type SegmentTree struct {
	root *SegmentNode
}

func NewSegmentTree() *SegmentTree {
	return &SegmentTree{root: newNode("")}
}

func newNode(name string) *SegmentNode {
	return &SegmentNode{
		name:     name,
		handlers: make(map[types.Method]types.Handler),
	}
}

func (n *SegmentNode) staticChild(name string) *SegmentNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// variableName returns the name inside a {name} segment.
func variableName(seg string) (string, bool) {
	if len(seg) >= 3 && seg[0] == '{' && seg[len(seg)-1] == '}' {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

// Insert binds handler for method at the node addressed by segments, which
// must already be split and stripped of leading and trailing slashes. An
// empty slice addresses the root. Insert returns a *ConfigError when the
// route conflicts with what is already registered.
func (t *SegmentTree) Insert(method types.Method, segments []string, handler types.Handler) error {
	if !method.Valid() {
		return &ConfigError{Kind: UnknownMethod, Method: method}
	}

	node := t.root
	for _, seg := range segments {
		if seg == "" {
			return &ConfigError{Kind: EmptySegment, Method: method, Segment: seg}
		}

		if name, ok := variableName(seg); ok {
			if len(name) > MaxNameSize {
				return &ConfigError{Kind: NameTooLong, Method: method, Segment: name}
			}
			if node.variable == nil {
				node.variable = newNode(name)
			} else if node.variable.name != name {
				return &ConfigError{Kind: VarConflict, Method: method, Segment: name, Existing: node.variable.name}
			}
			node = node.variable
			continue
		}

		if len(seg) > MaxNameSize {
			return &ConfigError{Kind: NameTooLong, Method: method, Segment: seg}
		}
		child := node.staticChild(seg)
		if child == nil {
			child = newNode(seg)
			node.children = append(node.children, child)
		}
		node = child
	}

	if _, exists := node.handlers[method]; exists {
		return &ConfigError{Kind: DuplicateMethod, Method: method}
	}
	node.handlers[method] = handler
	return nil
}

type MatchStatus int

const (
	NotFound MatchStatus = iota
	MethodNotAllowed
	Found
)

func (s MatchStatus) String() string {
	switch s {
	case Found:
		return "found"
	case MethodNotAllowed:
		return "method not allowed"
	default:
		return "not found"
	}
}

// Result is the outcome of Search. Handler and Vars are set only when
// Status is Found.
type Result struct {
	Status  MatchStatus
	Handler types.Handler
	Vars    *kvmap.Map
}

// Search walks the tree one segment at a time. Each segment is percent
// decoded first; malformed encoding means NotFound. At every node the static
// child with the decoded text is taken if present, otherwise the variable
// child captures the segment. The walk commits to whichever branch it took.
func (t *SegmentTree) Search(method types.Method, segments []string) Result {
	vars := kvmap.New()
	node := t.root

	for i := 0; i < len(segments); i++ {
		seg, err := percent.Decode(segments[i])
		if err != nil || seg == "" {
			return Result{Status: NotFound}
		}

		if child := node.staticChild(seg); child != nil {
			node = child
			continue
		}
		if node.variable == nil {
			return Result{Status: NotFound}
		}
		vars.Set(node.variable.name, seg)
		node = node.variable
	}

	if h, ok := node.handlers[method]; ok {
		return Result{Status: Found, Handler: h, Vars: vars}
	}
	if len(node.handlers) > 0 {
		return Result{Status: MethodNotAllowed}
	}
	return Result{Status: NotFound}
}
