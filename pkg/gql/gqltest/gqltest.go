// Package gqltest provides an in-memory gql.Environment for tests.
package gqltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fiftyone-dev/appsync/pkg/gql"
)

// Resolver answers a fetched or committed request.
type Resolver func(vars gql.Variables) (*gql.Response, error)

// Call records a fetch or mutation.
type Call struct {
	Name      string
	Variables gql.Variables
	Policy    gql.FetchPolicy
}

type hold struct {
	match   func(name string, vars gql.Variables) bool
	release chan struct{}
}

// Environment is a scripted gql.Environment. Mutation callbacks run
// synchronously inside Commit; fetches settle synchronously unless held.
type Environment struct {
	mu        sync.Mutex
	resolvers map[string]Resolver
	holds     []*hold
	fetches   []Call
	mutations []Call
}

var _ gql.Environment = (*Environment)(nil)

// New creates an empty environment. Unresolved requests answer with
// empty data.
func New() *Environment {
	return &Environment{resolvers: make(map[string]Resolver)}
}

// Handle installs the resolver for the named operation.
func (e *Environment) Handle(name string, r Resolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolvers[name] = r
}

// HandleData answers the named operation with a fixed JSON data payload.
func (e *Environment) HandleData(name string, data string) {
	e.Handle(name, func(gql.Variables) (*gql.Response, error) {
		return &gql.Response{Data: json.RawMessage(data)}, nil
	})
}

// Hold blocks fetches matching match until the returned release func is
// called.
func (e *Environment) Hold(match func(name string, vars gql.Variables) bool) (release func()) {
	h := &hold{match: match, release: make(chan struct{})}
	e.mu.Lock()
	e.holds = append(e.holds, h)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(h.release) })
	}
}

// Fetches returns the recorded fetches.
func (e *Environment) Fetches() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.fetches...)
}

// Mutations returns the recorded mutations in commit order.
func (e *Environment) Mutations() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.mutations...)
}

// MutationNames returns the names of recorded mutations in commit order.
func (e *Environment) MutationNames() []string {
	calls := e.Mutations()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

// Reset forgets recorded calls.
func (e *Environment) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetches = nil
	e.mutations = nil
}

func (e *Environment) resolve(name string, vars gql.Variables) (*gql.Response, error) {
	e.mu.Lock()
	r := e.resolvers[name]
	e.mu.Unlock()
	if r == nil {
		return &gql.Response{Data: json.RawMessage(`{}`)}, nil
	}
	return r(vars)
}

func (e *Environment) Fetch(ctx context.Context, req *gql.Request, vars gql.Variables, policy gql.FetchPolicy) gql.Operation {
	e.mu.Lock()
	e.fetches = append(e.fetches, Call{Name: req.Name, Variables: vars, Policy: policy})
	var gate chan struct{}
	for _, h := range e.holds {
		if h.match(req.Name, vars) {
			gate = h.release
			break
		}
	}
	e.mu.Unlock()

	if gate == nil {
		resp, err := e.resolve(req.Name, vars)
		return gql.Settled(req, vars, resp, err)
	}
	return newDeferred(req, vars, gate, func() (*gql.Response, error) {
		return e.resolve(req.Name, vars)
	})
}

func (e *Environment) Commit(ctx context.Context, req *gql.Request, vars gql.Variables, cb gql.MutationCallbacks) {
	e.mu.Lock()
	e.mutations = append(e.mutations, Call{Name: req.Name, Variables: vars})
	e.mu.Unlock()

	resp, err := e.resolve(req.Name, vars)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if cb.OnCompleted != nil {
		cb.OnCompleted(resp)
	}
}

// deferred is an operation that resolves once its gate opens.
type deferred struct {
	req  *gql.Request
	vars gql.Variables
	done chan struct{}
	once sync.Once
	resp *gql.Response
	err  error
}

func newDeferred(req *gql.Request, vars gql.Variables, gate <-chan struct{}, resolve func() (*gql.Response, error)) *deferred {
	d := &deferred{req: req, vars: vars, done: make(chan struct{})}
	go func() {
		select {
		case <-gate:
			resp, err := resolve()
			d.settle(resp, err)
		case <-d.done:
		}
	}()
	return d
}

func (d *deferred) settle(resp *gql.Response, err error) {
	d.once.Do(func() {
		d.resp, d.err = resp, err
		close(d.done)
	})
}

func (d *deferred) Request() *gql.Request     { return d.req }
func (d *deferred) Variables() gql.Variables { return d.vars }

func (d *deferred) Wait(ctx context.Context) (*gql.Response, error) {
	select {
	case <-d.done:
		return d.resp, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *deferred) Close() {
	d.settle(nil, context.Canceled)
}
