package router

import (
	"sync"

	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
)

// Entry is a resolved navigation: a location together with its component
// and preloaded query. Entries are never modified after they resolve.
type Entry struct {
	history.Location

	Route     *Route
	Match     *MatchResult
	Component Component

	// Request is the route query, or nil for routes without one.
	Request *gql.Request

	// Operation is the preloaded query handle.
	Operation gql.Operation

	// Data is the first query response.
	Data *gql.Response

	Variables gql.Variables

	// query is shared by entries that show the same preloaded query at
	// different locations.
	query *preloaded
}

type preloaded struct {
	once sync.Once
}

func newEntry(loc history.Location, route *Route, match *MatchResult) *Entry {
	return &Entry{
		Location:  loc,
		Route:     route,
		Match:     match,
		Variables: match.Variables,
		query:     &preloaded{},
	}
}

// at returns a copy of e shown at loc. The copy shares e's query.
func (e *Entry) at(loc history.Location) *Entry {
	return &Entry{
		Location:  loc,
		Route:     e.Route,
		Match:     e.Match,
		Component: e.Component,
		Request:   e.Request,
		Operation: e.Operation,
		Data:      e.Data,
		Variables: e.Variables,
		query:     e.query,
	}
}

// SharesQuery reports whether e and other hold the same preloaded query.
func (e *Entry) SharesQuery(other *Entry) bool {
	if e == nil || other == nil {
		return false
	}
	return e == other || (e.query != nil && e.query == other.query)
}

// Cleanup releases the entry's query. It is safe to call more than once.
func (e *Entry) Cleanup() {
	if e == nil || e.Operation == nil {
		return
	}
	if e.query == nil {
		e.Operation.Close()
		return
	}
	e.query.once.Do(e.Operation.Close)
}

// DatasetName returns the dataset shown by the entry, or "" when the route
// has no dataset.
func (e *Entry) DatasetName() string {
	if e == nil || e.Route == nil || e.Route.DatasetName == nil {
		return ""
	}
	return e.Route.DatasetName(e.Variables)
}
