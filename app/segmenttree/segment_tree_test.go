package segmenttree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierroma/nhttp/app/types"
)

func split(path string) []string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func TestSegmentTreeRouting(t *testing.T) {
	type testRoute struct {
		method  types.Method
		path    string
		handler int
	}

	type testCase struct {
		name          string
		routes        []testRoute
		searchMethod  types.Method
		searchPath    string
		wantStatus    MatchStatus
		wantParams    map[string]string
		wantHandlerID int
	}

	// each handler reports its own index so a match can be identified
	handlers := make([]types.Handler, 10)
	for i := range handlers {
		i := i
		handlers[i] = func(*types.Context) int { return i }
	}

	tests := []testCase{
		{
			name: "Exact static routes",
			routes: []testRoute{
				{types.Get, "/about", 0},
				{types.Get, "/foo/bar", 1},
			},
			searchMethod:  types.Get,
			searchPath:    "/foo/bar",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 1,
		},
		{
			name: "Root path",
			routes: []testRoute{
				{types.Get, "/", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 0,
		},
		{
			name: "Not found case",
			routes: []testRoute{
				{types.Get, "/exists", 0},
			},
			searchMethod: types.Get,
			searchPath:   "/does-not-exist",
			wantStatus:   NotFound,
		},
		{
			name: "Nested static routes - deepest",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
				{types.Get, "/a/b", 1},
			},
			searchMethod:  types.Get,
			searchPath:    "/a/b/c",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 0,
		},
		{
			name: "Nested static routes - intermediate",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
				{types.Get, "/a/b", 1},
			},
			searchMethod:  types.Get,
			searchPath:    "/a/b",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 1,
		},
		{
			name: "Nested static routes - unbound root",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
				{types.Get, "/a/b", 1},
			},
			searchMethod: types.Get,
			searchPath:   "/",
			wantStatus:   NotFound,
		},
		{
			name: "Nested static routes - unbound intermediate",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
			},
			searchMethod: types.Get,
			searchPath:   "/a/b",
			wantStatus:   NotFound,
		},
		{
			name: "Method not allowed",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
				{types.Get, "/a/b", 1},
			},
			searchMethod: types.Post,
			searchPath:   "/a/b",
			wantStatus:   MethodNotAllowed,
		},
		{
			name: "Registered only for PUT",
			routes: []testRoute{
				{types.Put, "/items", 0},
			},
			searchMethod: types.Get,
			searchPath:   "/items",
			wantStatus:   MethodNotAllowed,
		},
		{
			name: "Single param capture",
			routes: []testRoute{
				{types.Get, "/users/{id}", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/users/42",
			wantStatus:    Found,
			wantParams:    map[string]string{"id": "42"},
			wantHandlerID: 0,
		},
		{
			name: "Multiple params in one path",
			routes: []testRoute{
				{types.Get, "/{foo}/baz/{bar}", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/hello--/baz/world--",
			wantStatus:    Found,
			wantParams:    map[string]string{"foo": "hello--", "bar": "world--"},
			wantHandlerID: 0,
		},
		{
			name: "Param value is percent decoded",
			routes: []testRoute{
				{types.Get, "/files/{name}", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/files/my%20file%2ftxt",
			wantStatus:    Found,
			wantParams:    map[string]string{"name": "my file/txt"},
			wantHandlerID: 0,
		},
		{
			name: "Static segment matched after decoding",
			routes: []testRoute{
				{types.Get, "/hello world", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/hello%20world",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 0,
		},
		{
			name: "Malformed encoding",
			routes: []testRoute{
				{types.Get, "/files/{name}", 0},
			},
			searchMethod: types.Get,
			searchPath:   "/files/bad%2",
			wantStatus:   NotFound,
		},
		{
			name: "Empty segment rejection",
			routes: []testRoute{
				{types.Get, "/files/{file}", 0},
			},
			searchMethod: types.Get,
			searchPath:   "/files//foo",
			wantStatus:   NotFound,
		},
		{
			name: "Different HTTP methods on same path",
			routes: []testRoute{
				{types.Get, "/foo", 0},
				{types.Post, "/foo", 1},
			},
			searchMethod:  types.Post,
			searchPath:    "/foo",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 1,
		},
		{
			name: "Static precedence over param - exact match",
			routes: []testRoute{
				{types.Get, "/a/{foo}", 0},
				{types.Get, "/a/bar", 1},
			},
			searchMethod:  types.Get,
			searchPath:    "/a/bar",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 1,
		},
		{
			name: "Static precedence over param - param fallback",
			routes: []testRoute{
				{types.Get, "/a/{foo}", 0},
				{types.Get, "/a/bar", 1},
			},
			searchMethod:  types.Get,
			searchPath:    "/a/hello",
			wantStatus:    Found,
			wantParams:    map[string]string{"foo": "hello"},
			wantHandlerID: 0,
		},
		{
			name: "No backtracking into the variable branch",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
				{types.Get, "/a/{x}/d", 1},
			},
			searchMethod: types.Get,
			searchPath:   "/a/b/d",
			wantStatus:   NotFound,
		},
		{
			name: "Deeply nested static vs param - param captures",
			routes: []testRoute{
				{types.Get, "/a/b/c", 0},
				{types.Get, "/a/{b}/c", 1},
			},
			searchMethod:  types.Get,
			searchPath:    "/a/xyz/c",
			wantStatus:    Found,
			wantParams:    map[string]string{"b": "xyz"},
			wantHandlerID: 1,
		},
		{
			name: "Repeated param names at different depths",
			routes: []testRoute{
				{types.Get, "/foo/{id}/bar/{id}", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/foo/123/bar/456",
			wantStatus:    Found,
			wantParams:    map[string]string{"id": "456"}, // last value wins
			wantHandlerID: 0,
		},
		{
			name: "Two-character braces are static",
			routes: []testRoute{
				{types.Get, "/x/{}", 0},
			},
			searchMethod:  types.Get,
			searchPath:    "/x/%7B%7D",
			wantStatus:    Found,
			wantParams:    map[string]string{},
			wantHandlerID: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewSegmentTree()
			for _, r := range tt.routes {
				require.NoError(t, tr.Insert(r.method, split(r.path), handlers[r.handler]))
			}

			got := tr.Search(tt.searchMethod, split(tt.searchPath))
			assert.Equal(t, tt.wantStatus, got.Status)

			if tt.wantStatus != Found {
				assert.Nil(t, got.Handler)
				assert.Nil(t, got.Vars)
				return
			}

			require.NotNil(t, got.Handler)
			assert.Equal(t, tt.wantHandlerID, got.Handler(nil))
			assert.Equal(t, tt.wantParams, got.Vars.ToMap())
		})
	}
}

func TestInsertConfigErrors(t *testing.T) {
	noop := func(*types.Context) int { return 0 }

	tests := []struct {
		name     string
		existing []string
		method   types.Method
		path     string
		wantKind ErrorKind
	}{
		{
			name:     "Conflicting variable names",
			existing: []string{"/foo/{bar}"},
			method:   types.Get,
			path:     "/foo/{baz}",
			wantKind: VarConflict,
		},
		{
			name:     "Conflicting variable names deeper",
			existing: []string{"/foo/{bar}/x"},
			method:   types.Post,
			path:     "/foo/{baz}/y",
			wantKind: VarConflict,
		},
		{
			name:     "Duplicate method binding",
			existing: []string{"/x/{id}"},
			method:   types.Get,
			path:     "/x/{id}",
			wantKind: DuplicateMethod,
		},
		{
			name:     "Empty inner segment",
			method:   types.Get,
			path:     "/a//b",
			wantKind: EmptySegment,
		},
		{
			name:     "Static name too long",
			method:   types.Get,
			path:     "/" + strings.Repeat("s", MaxNameSize+1),
			wantKind: NameTooLong,
		},
		{
			name:     "Variable name too long",
			method:   types.Get,
			path:     "/{" + strings.Repeat("v", MaxNameSize+1) + "}",
			wantKind: NameTooLong,
		},
		{
			name:     "Unknown method",
			method:   types.Method("PATCH"),
			path:     "/a",
			wantKind: UnknownMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewSegmentTree()
			for _, p := range tt.existing {
				require.NoError(t, tr.Insert(types.Get, split(p), noop))
			}

			err := tr.Insert(tt.method, split(tt.path), noop)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantKind, cfgErr.Kind)
			assert.NotEmpty(t, cfgErr.Error())
		})
	}
}

func TestSameVariableNameShared(t *testing.T) {
	tr := NewSegmentTree()
	require.NoError(t, tr.Insert(types.Get, split("/echo/{msg}/v1"), func(*types.Context) int { return 1 }))
	require.NoError(t, tr.Insert(types.Get, split("/echo/{msg}/v2"), func(*types.Context) int { return 2 }))
	require.NoError(t, tr.Insert(types.Delete, split("/echo/{msg}"), func(*types.Context) int { return 3 }))

	got := tr.Search(types.Get, split("/echo/hello/v2"))
	require.Equal(t, Found, got.Status)
	assert.Equal(t, 2, got.Handler(nil))
	assert.Equal(t, map[string]string{"msg": "hello"}, got.Vars.ToMap())

	got = tr.Search(types.Delete, split("/echo/bye"))
	require.Equal(t, Found, got.Status)
	assert.Equal(t, 3, got.Handler(nil))

	assert.Equal(t, MethodNotAllowed, tr.Search(types.Head, split("/echo/bye")).Status)
}
