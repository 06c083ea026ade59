// Package resource provides a single-use memoizing wrapper around an
// asynchronous loader.
//
// A Resource invokes its factory at most once, no matter how many callers
// Load it concurrently. Readers that must not block use Get, which reports
// ErrNotReady until the load settles.
package resource

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady is returned by Get while the resource is unstarted or loading.
var ErrNotReady = errors.New("resource: not ready")

// State represents the current state of a resource.
type State int

const (
	Unstarted State = iota // Factory not invoked yet
	Loading                // Factory in progress
	Ready                  // Value successfully loaded
	Failed                 // Factory returned an error
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resource loads a value at most once.
// A Resource never resets; discard it and allocate a new one instead.
type Resource[T any] struct {
	factory func(context.Context) (T, error)

	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
}

// New creates a Resource around factory. The factory is not invoked until
// the first Load.
func New[T any](factory func(context.Context) (T, error)) *Resource[T] {
	return &Resource[T]{
		factory: factory,
		done:    make(chan struct{}),
	}
}

// Resolved returns a Resource that is already settled with value.
func Resolved[T any](value T) *Resource[T] {
	r := &Resource[T]{
		state: Ready,
		value: value,
		done:  make(chan struct{}),
	}
	close(r.done)
	return r
}

// Start invokes the factory if it has not been invoked yet and returns
// immediately. The factory runs with ctx's values but is never cancelled by
// ctx, so one caller giving up does not fail the load for everyone else.
func (r *Resource[T]) Start(ctx context.Context) {
	r.mu.Lock()
	if r.state != Unstarted {
		r.mu.Unlock()
		return
	}
	r.state = Loading
	r.mu.Unlock()

	go r.run(context.WithoutCancel(ctx))
}

func (r *Resource[T]) run(ctx context.Context) {
	value, err := r.factory(ctx)

	r.mu.Lock()
	if err != nil {
		r.state = Failed
		r.err = err
	} else {
		r.state = Ready
		r.value = value
	}
	r.mu.Unlock()
	close(r.done)
}

// Load starts the factory if needed and waits for it to settle or for ctx
// to be done. Every caller observes the same value or the same error.
func (r *Resource[T]) Load(ctx context.Context) (T, error) {
	r.Start(ctx)

	select {
	case <-r.done:
		return r.Get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get returns the loaded value without blocking. It returns ErrNotReady
// while the resource is unstarted or loading, and the factory's error once
// it has failed.
func (r *Resource[T]) Get() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Ready:
		return r.value, nil
	case Failed:
		var zero T
		return zero, r.err
	default:
		var zero T
		return zero, ErrNotReady
	}
}

// State returns the current state.
func (r *Resource[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done returns a channel that is closed once the resource settles.
func (r *Resource[T]) Done() <-chan struct{} {
	return r.done
}

// IsReady reports whether the value is available.
func (r *Resource[T]) IsReady() bool {
	return r.State() == Ready
}

// IsLoading reports whether the factory is in progress.
func (r *Resource[T]) IsLoading() bool {
	return r.State() == Loading
}
