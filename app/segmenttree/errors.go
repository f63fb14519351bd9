package segmenttree

import (
	"errors"
	"fmt"

	"github.com/xavierroma/nhttp/app/types"
)

// ErrConfig matches every *ConfigError through errors.Is.
var ErrConfig = errors.New("route configuration error")

type ErrorKind int

const (
	// VarConflict: a variable segment names a different variable than the
	// one already registered at the same trie position.
	VarConflict ErrorKind = iota
	NameTooLong
	DuplicateMethod
	EmptySegment
	UnknownMethod
)

func (k ErrorKind) String() string {
	switch k {
	case VarConflict:
		return "variable name conflict"
	case NameTooLong:
		return "segment name too long"
	case DuplicateMethod:
		return "method already bound"
	case EmptySegment:
		return "empty path segment"
	case UnknownMethod:
		return "unknown method"
	default:
		return fmt.Sprintf("unknown route error: %d", int(k))
	}
}

// ConfigError is returned by Insert when a route cannot be registered.
// Callers are expected to abort startup on it.
type ConfigError struct {
	Kind     ErrorKind
	Method   types.Method
	Segment  string
	Existing string // conflicting variable name for VarConflict
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case VarConflict:
		return fmt.Sprintf("%s: {%s} registered where {%s} already exists", e.Kind, e.Segment, e.Existing)
	case DuplicateMethod, UnknownMethod:
		return fmt.Sprintf("%s: %s", e.Kind, e.Method)
	default:
		return fmt.Sprintf("%s: %q", e.Kind, e.Segment)
	}
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
