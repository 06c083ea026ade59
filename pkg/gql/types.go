package gql

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes queries from mutations.
type Kind int

const (
	KindQuery Kind = iota
	KindMutation
)

// Request is a compiled query or mutation document.
type Request struct {
	// Name is the operation name (e.g., "DatasetPageQuery").
	Name string

	// Kind is query or mutation.
	Kind Kind

	// Text is the GraphQL document sent to the server.
	Text string
}

// NewQuery creates a query request.
func NewQuery(name, text string) *Request {
	return &Request{Name: name, Kind: KindQuery, Text: text}
}

// NewMutation creates a mutation request.
func NewMutation(name, text string) *Request {
	return &Request{Name: name, Kind: KindMutation, Text: text}
}

// Variables are the operation variables.
type Variables map[string]any

// String returns a stable encoding of v suitable as a cache key.
func (v Variables) String() string {
	if len(v) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		// encoding/json sorts nested map keys, so nested values are stable too.
		val, err := json.Marshal(v[k])
		if err != nil {
			val = []byte(fmt.Sprintf("%q", fmt.Sprint(v[k])))
		}
		fmt.Fprintf(&b, "%q:%s", k, val)
	}
	b.WriteByte('}')
	return b.String()
}

// FetchPolicy controls whether a fetch may be answered from the store.
type FetchPolicy string

const (
	// StoreOrNetwork answers from the store when a fresh response exists.
	StoreOrNetwork FetchPolicy = "store-or-network"

	// NetworkOnly always goes to the server (used for hard reloads).
	NetworkOnly FetchPolicy = "network-only"
)

// ResponseError is a GraphQL error entry.
type ResponseError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Response is a GraphQL response payload.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ResponseError `json:"errors,omitempty"`
}

// Decode unmarshals the data payload into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return fmt.Errorf("gql: empty response data")
	}
	return json.Unmarshal(r.Data, v)
}

// Err returns the response's GraphQL errors as a single error, or nil.
func (r *Response) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return fmt.Errorf("gql: %s", strings.Join(msgs, "; "))
}

// Operation is a handle on an in-flight or completed query fetch.
type Operation interface {
	// Request returns the fetched request.
	Request() *Request

	// Variables returns the variables the request was fetched with.
	Variables() Variables

	// Wait blocks until the first response arrives, the fetch fails, or
	// ctx is done.
	Wait(ctx context.Context) (*Response, error)

	// Close releases the operation. An in-flight fetch is cancelled.
	Close()
}

// MutationCallbacks receive the outcome of a committed mutation.
// Either may be nil.
type MutationCallbacks struct {
	OnCompleted func(*Response)
	OnError     func(error)
}

// Environment executes queries and mutations.
type Environment interface {
	// Fetch starts fetching req and returns immediately.
	Fetch(ctx context.Context, req *Request, vars Variables, policy FetchPolicy) Operation

	// Commit sends a mutation. It does not block; the outcome is reported
	// through cb.
	Commit(ctx context.Context, req *Request, vars Variables, cb MutationCallbacks)
}
