package router

import (
	"maps"
	"net/url"
	"strings"
	"sync"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/routepath"
)

// MatchResult is the outcome of matching a location against a route.
type MatchResult struct {
	// Path is the route pattern that matched.
	Path string

	// URL is the matched pathname with any proxy prefix removed.
	URL string

	// Variables are the query variables derived from the location.
	Variables gql.Variables
}

type segmentKind int

const (
	segmentStatic segmentKind = iota
	segmentParam
	segmentCatchAll
)

type segment struct {
	kind  segmentKind
	value string // literal for static segments, name otherwise
}

// pattern is a compiled route path.
type pattern struct {
	segments []segment
}

// patterns memoizes compiled route paths.
var patterns sync.Map // string -> *pattern

func compile(path string) *pattern {
	if p, ok := patterns.Load(path); ok {
		return p.(*pattern)
	}

	parts := splitPath(path)
	p := &pattern{segments: make([]segment, 0, len(parts))}
	for _, part := range parts {
		switch {
		case strings.HasPrefix(part, "*"):
			p.segments = append(p.segments, segment{kind: segmentCatchAll, value: part[1:]})
		case strings.HasPrefix(part, ":"):
			p.segments = append(p.segments, segment{kind: segmentParam, value: part[1:]})
		default:
			p.segments = append(p.segments, segment{kind: segmentStatic, value: part})
		}
		if p.segments[len(p.segments)-1].kind == segmentCatchAll {
			break // catch-all consumes the rest of the path
		}
	}

	actual, _ := patterns.LoadOrStore(path, p)
	return actual.(*pattern)
}

// match reports whether pathname matches, filling params with the raw
// (still encoded) parameter values.
func (p *pattern) match(pathname string, params map[string]string) bool {
	parts := splitPath(pathname)
	for i, seg := range p.segments {
		switch seg.kind {
		case segmentCatchAll:
			params[seg.value] = strings.Join(parts[i:], "/")
			return true
		case segmentParam:
			if i >= len(parts) || parts[i] == "" {
				return false
			}
			params[seg.value] = parts[i]
		default:
			if i >= len(parts) || !strings.EqualFold(parts[i], seg.value) {
				return false
			}
		}
	}
	return len(parts) == len(p.segments)
}

// splitPath splits a path into segments, ignoring leading and trailing
// slashes.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Match matches a location against route. It returns nil when the route
// does not match.
//
// Variables are merged in increasing precedence: the route's DefaultParams,
// the location state, decoded path parameters, then declared search
// parameters. The route's Transform, if any, sees the merged result.
func Match(pathname string, route *Route, search string, state history.State) *MatchResult {
	pathname = routepath.StripProxy(pathname, search)

	params := make(map[string]string)
	if !compile(route.Path).match(pathname, params) {
		return nil
	}

	vars := make(gql.Variables)
	maps.Copy(vars, route.DefaultParams)
	maps.Copy(vars, state.Variables())
	for name, raw := range params {
		vars[name] = decode(raw)
	}

	if len(route.SearchParams) > 0 {
		// ParseQuery keeps the pairs it could parse on error.
		query, _ := url.ParseQuery(strings.TrimPrefix(search, "?"))
		for key, name := range route.SearchParams {
			if query.Has(key) {
				vars[name] = query.Get(key)
			}
		}
	}

	if route.Transform != nil {
		vars = route.Transform(state.Clone(), vars)
	}

	return &MatchResult{
		Path:      route.Path,
		URL:       pathname,
		Variables: vars,
	}
}

// MatchRoutes returns the first route matching the location, trying each
// route before its children. It returns nil, nil when nothing matches.
func MatchRoutes(routes []*Route, pathname, search string, state history.State) (*Route, *MatchResult) {
	for _, route := range routes {
		if m := Match(pathname, route, search, state); m != nil {
			return route, m
		}
		if route, m := MatchRoutes(route.Children, pathname, search, state); m != nil {
			return route, m
		}
	}
	return nil, nil
}

func decode(raw string) string {
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}
