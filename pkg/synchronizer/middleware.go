package synchronizer

import "context"

// Kind is the kind of a dispatch.
type Kind string

const (
	KindEvent  Kind = "event"
	KindWriter Kind = "writer"
	KindSetter Kind = "setter"
)

// Dispatch describes one handler invocation.
type Dispatch struct {
	Kind         Kind
	Name         string
	Subscription string
}

// Middleware wraps handler dispatch.
type Middleware interface {
	Handle(ctx context.Context, d Dispatch, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, d Dispatch, next func(context.Context) error) error

func (f MiddlewareFunc) Handle(ctx context.Context, d Dispatch, next func(context.Context) error) error {
	return f(ctx, d, next)
}

// compose runs handler inside mw, first to last.
func compose(ctx context.Context, d Dispatch, mw []Middleware, handler func(context.Context) error) error {
	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func(ctx context.Context) error {
			return m.Handle(ctx, d, next)
		}
	}
	return chain(ctx)
}

// Chain combines middleware into one, run in order.
func Chain(mw ...Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, d Dispatch, next func(context.Context) error) error {
		return compose(ctx, d, mw, next)
	})
}
