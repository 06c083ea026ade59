package router

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/resource"
	"github.com/fiftyone-dev/appsync/pkg/routepath"
)

// CommitFunc is called when a navigation commits. prev is nil when there
// was no resolved entry before.
type CommitFunc func(entry *Entry, action history.Action, prev *Entry)

// Options configures a Router.
type Options struct {
	// Routes are matched in order.
	Routes []*Route

	// History is the navigation history the router follows.
	History history.History

	// Environment fetches route queries.
	Environment gql.Environment

	// HandleError receives failures of history-driven navigations. It is
	// called once per failed attempt.
	HandleError func(error)

	// Scheduler defers pending notifications. Default: a FrameScheduler.
	Scheduler Scheduler

	// Reuse decides which navigations keep the current data.
	// Default: DefaultReusePolicy().
	Reuse ReusePolicy

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type subscription struct {
	id        string
	onCommit  CommitFunc
	onPending func()
}

// Router follows a History and resolves each location to an Entry.
type Router struct {
	routes      []*Route
	history     history.History
	env         gql.Environment
	handleError func(error)
	scheduler   Scheduler
	reuse       ReusePolicy
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	current     *resource.Resource[*Entry]
	next        *resource.Resource[*Entry]
	shown       *history.Location // location of the last committed entry
	subs        []*subscription
	gate        chan struct{} // closed when the previous build step is done
	initialized bool
	closed      bool
	unlisten    func()

	// commitMu serializes commits.
	commitMu sync.Mutex
}

// New creates a Router. It starts following history immediately but
// ignores history events until the first Load.
func New(opts Options) *Router {
	if opts.Scheduler == nil {
		opts.Scheduler = NewFrameScheduler(DefaultFrameInterval)
	}
	if opts.Reuse == nil {
		opts.Reuse = DefaultReusePolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HandleError == nil {
		logger := opts.Logger
		opts.HandleError = func(err error) {
			logger.Error("navigation failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	close(gate)

	r := &Router{
		routes:      opts.Routes,
		history:     opts.History,
		env:         opts.Environment,
		handleError: opts.HandleError,
		scheduler:   opts.Scheduler,
		reuse:       opts.Reuse,
		logger:      opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
		gate:        gate,
	}
	r.unlisten = r.history.Listen(r.onHistory)
	return r
}

// Load resolves the current entry, building it from the history location
// when none exists yet or when hard is set. A hard load bypasses the query
// store. A freshly built entry is committed to subscribers with
// history.ActionNone.
//
// An unmatched location fails with CodeRouteNotFound.
func (r *Router) Load(ctx context.Context, hard bool) (*Entry, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, context.Canceled
	}
	res := r.current
	var prev *resource.Resource[*Entry]
	fresh := res == nil || hard
	if fresh {
		policy := gql.StoreOrNetwork
		if hard {
			policy = gql.NetworkOnly
		}
		built, err := r.buildLocked(r.history.Location(), policy)
		if err != nil {
			// Later navigations may still match.
			r.initialized = true
			r.mu.Unlock()
			return nil, err
		}
		prev, res = res, built
		r.current = res
	}
	r.initialized = true
	r.mu.Unlock()

	res.Start(r.ctx)
	if !fresh {
		return res.Load(ctx)
	}

	entry, err := res.Load(ctx)
	switch {
	case err == nil:
		r.commitLoaded(res, prev, entry)
		return entry, nil
	case ctx.Err() != nil:
		// The caller gave up; commit whenever the entry arrives.
		r.spawn(func() {
			if entry, err := res.Load(r.ctx); err == nil {
				r.commitLoaded(res, prev, entry)
			}
		})
	default:
		r.mu.Lock()
		if r.current == res && prev != nil {
			r.current = prev
		}
		r.mu.Unlock()
	}
	return nil, err
}

// Get returns the current entry, or the in-flight next entry when next is
// set. It never blocks: an unresolved entry fails with CodeEntryLoading
// and a missing one with CodeNoEntry.
func (r *Router) Get(next bool) (*Entry, error) {
	r.mu.Lock()
	res := r.current
	if next {
		res = r.next
	}
	r.mu.Unlock()

	if res == nil {
		return nil, errors.New(errors.CodeNoEntry)
	}
	entry, err := res.Get()
	if err == resource.ErrNotReady {
		return nil, errors.New(errors.CodeEntryLoading)
	}
	return entry, err
}

// Push navigates to path. The entry resolves asynchronously.
func (r *Router) Push(path string, state history.State) {
	r.history.Push(r.canonical(path), state)
}

// Replace replaces the current location with path.
func (r *Router) Replace(path string, state history.State) {
	r.history.Replace(r.canonical(path), state)
}

// canonical cleans the path part of p. A path that cannot be cleaned is
// kept as given; it will fail to match.
func (r *Router) canonical(p string) string {
	res, err := routepath.CanonicalizePath(p)
	if err != nil {
		r.logger.Warn("invalid navigation path", "path", p, "error", err)
		return p
	}
	if !res.Changed {
		return p
	}
	if res.Query == "" {
		return res.Path
	}
	return res.Path + "?" + res.Query
}

// Location returns the history's current location.
func (r *Router) Location() history.Location {
	return r.history.Location()
}

// History returns the history the router follows.
func (r *Router) History() history.History {
	return r.history
}

// URL returns path with the current proxy prefix and query parameters
// applied.
func (r *Router) URL(path string, params url.Values) string {
	return routepath.WithProxy(path, r.history.Location().Search, params)
}

// Subscribe registers onCommit for committed navigations and the optional
// onPending for navigations that have started. Subscribers are called in
// registration order. The returned func unsubscribes.
func (r *Router) Subscribe(onCommit CommitFunc, onPending func()) (unsubscribe func()) {
	sub := &subscription{
		id:        uuid.NewString(),
		onCommit:  onCommit,
		onPending: onPending,
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == sub.id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Close stops following history, waits for in-flight navigations to
// wind down and releases the current entry.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unlisten := r.unlisten
	r.mu.Unlock()

	unlisten()
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if current != nil {
		if entry, err := current.Get(); err == nil {
			entry.Cleanup()
		}
	}
}

func (r *Router) spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

func (r *Router) onHistory(loc history.Location, action history.Action) {
	r.mu.Lock()
	if r.closed || !r.initialized {
		r.mu.Unlock()
		return
	}
	prev := r.gate
	done := make(chan struct{})
	r.gate = done
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.update(prev, done, loc, action)
	}()
}

// update navigates to loc. Builds happen in history order: each waits for
// the previous build step (prev) and releases the next one (done).
func (r *Router) update(prev <-chan struct{}, done chan struct{}, loc history.Location, action history.Action) {
	released := false
	release := func() {
		if !released {
			released = true
			close(done)
		}
	}
	defer release()

	select {
	case <-prev:
	case <-r.ctx.Done():
		return
	}

	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if current != nil {
		// A failed current entry does not block navigation.
		if _, err := current.Load(r.ctx); err != nil && r.ctx.Err() != nil {
			return
		}
	}

	r.mu.Lock()
	result, err := r.buildNext(loc)
	r.mu.Unlock()
	if err == nil && result.kind == buildReuse {
		// The next build must see loc as shown.
		r.logger.Debug("navigation reuses current entry", "path", loc.Path(), "event", string(loc.State.Event))
		r.commit(result.resource, result.entry, action)
		return
	}
	release()

	if err != nil {
		r.handleError(err)
		return
	}

	res := result.resource
	r.scheduler.Schedule(r.notifyPending)
	res.Start(r.ctx)

	entry, err := res.Load(r.ctx)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.mu.Lock()
		stale := r.next != res
		if !stale {
			r.next = nil
		}
		r.mu.Unlock()
		if stale {
			r.logger.Debug("superseded navigation failed", "path", loc.Path(), "error", err)
			return
		}
		r.handleError(err)
		return
	}

	r.commit(res, entry, action)
}

type buildKind int

const (
	buildNew buildKind = iota
	buildReuse
)

type buildResult struct {
	kind     buildKind
	resource *resource.Resource[*Entry]
	entry    *Entry // resolved entry of a reused build
}

// buildNext returns the resource for loc, which becomes next. When loc is
// reusable against the shown location the resource is already resolved to
// the current entry moved to loc. r.mu must be held.
func (r *Router) buildNext(loc history.Location) (buildResult, error) {
	if r.shown != nil && IsReusable(*r.shown, loc, r.reuse) {
		if cur := resolved(r.current); cur != nil {
			entry := cur.at(loc)
			res := resource.Resolved(entry)
			r.next = res
			return buildResult{kind: buildReuse, resource: res, entry: entry}, nil
		}
	}
	res, err := r.buildLocked(loc, gql.StoreOrNetwork)
	if err != nil {
		return buildResult{}, err
	}
	r.next = res
	return buildResult{kind: buildNew, resource: res}, nil
}

// buildLocked creates an unstarted entry resource for loc. r.mu must be
// held.
func (r *Router) buildLocked(loc history.Location, policy gql.FetchPolicy) (*resource.Resource[*Entry], error) {
	route, match := MatchRoutes(r.routes, loc.Pathname, loc.Search, loc.State)
	if match == nil {
		return nil, errors.New(errors.CodeRouteNotFound).WithSubject(loc.Pathname)
	}

	return resource.New(func(ctx context.Context) (*Entry, error) {
		return r.resolve(ctx, loc, route, match, policy)
	}), nil
}

func (r *Router) resolve(ctx context.Context, loc history.Location, route *Route, match *MatchResult, policy gql.FetchPolicy) (*Entry, error) {
	entry := newEntry(loc, route, match)

	if route.Component != nil {
		component, err := route.Component.Load(ctx)
		if err != nil {
			return nil, err
		}
		entry.Component = component
	}
	if route.Query == nil {
		return entry, nil
	}

	req, err := route.Query.Load(ctx)
	if err != nil {
		return nil, err
	}
	op := r.env.Fetch(ctx, req, match.Variables, policy)
	data, err := op.Wait(ctx)
	if err != nil {
		op.Close()
		return nil, err
	}

	entry.Request = req
	entry.Operation = op
	entry.Data = data
	return entry, nil
}

// commit publishes entry if res is still the router's next entry.
func (r *Router) commit(res *resource.Resource[*Entry], entry *Entry, action history.Action) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	r.mu.Lock()
	if r.next != res {
		r.mu.Unlock()
		r.logger.Debug("dropping superseded navigation", "path", entry.Path())
		if !entry.SharesQuery(resolved(r.current)) {
			entry.Cleanup()
		}
		return
	}
	prevRes := r.current
	subs := r.snapshotLocked()
	r.mu.Unlock()

	prev := resolved(prevRes)
	r.publish(subs, entry, action, prev)

	r.mu.Lock()
	r.current = res
	r.shown = &entry.Location
	if r.next == res {
		r.next = nil
	}
	r.mu.Unlock()

	if prev != nil && !prev.SharesQuery(entry) {
		prev.Cleanup()
	}
}

// commitLoaded publishes an entry created by Load.
func (r *Router) commitLoaded(res, prevRes *resource.Resource[*Entry], entry *Entry) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	r.mu.Lock()
	if r.current != res {
		r.mu.Unlock()
		return
	}
	subs := r.snapshotLocked()
	r.shown = &entry.Location
	r.mu.Unlock()

	prev := resolved(prevRes)
	r.publish(subs, entry, history.ActionNone, prev)
	if prev != nil && !prev.SharesQuery(entry) {
		prev.Cleanup()
	}
}

func (r *Router) publish(subs []*subscription, entry *Entry, action history.Action, prev *Entry) {
	r.logger.Debug("navigation committed", "path", entry.Path(), "action", string(action))
	for _, s := range subs {
		if s.onCommit != nil {
			s.onCommit(entry, action, prev)
		}
	}
}

func (r *Router) notifyPending() {
	r.mu.Lock()
	subs := r.snapshotLocked()
	r.mu.Unlock()

	for _, s := range subs {
		if s.onPending != nil {
			s.onPending()
		}
	}
}

func (r *Router) snapshotLocked() []*subscription {
	return append([]*subscription(nil), r.subs...)
}

func resolved(res *resource.Resource[*Entry]) *Entry {
	if res == nil {
		return nil
	}
	entry, err := res.Get()
	if err != nil {
		return nil
	}
	return entry
}
