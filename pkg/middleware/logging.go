package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// Logging writes a debug record for every dispatch and a warning for each
// failed one. A nil logger uses slog.Default().
func Logging(logger *slog.Logger) synchronizer.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return synchronizer.MiddlewareFunc(func(ctx context.Context, d synchronizer.Dispatch, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)

		attrs := []any{
			"kind", string(d.Kind),
			"name", d.Name,
			"duration", time.Since(start),
		}
		if err != nil {
			logger.WarnContext(ctx, "dispatch failed", append(attrs, "error", err)...)
		} else {
			logger.DebugContext(ctx, "dispatched", attrs...)
		}
		return err
	})
}

// PanicError is returned by Recover when a handler panics.
type PanicError struct {
	Dispatch synchronizer.Dispatch
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s %q panicked: %v", e.Dispatch.Kind, e.Dispatch.Name, e.Value)
}

// Recover turns a handler panic into a *PanicError so that one bad handler
// does not take down the event loop.
func Recover(logger *slog.Logger) synchronizer.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return synchronizer.MiddlewareFunc(func(ctx context.Context, d synchronizer.Dispatch, next func(context.Context) error) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Error("handler panic",
					"panic", r,
					"kind", string(d.Kind),
					"name", d.Name,
					"stack", string(stack))
				err = &PanicError{Dispatch: d, Value: r, Stack: stack}
			}
		}()
		return next(ctx)
	})
}
