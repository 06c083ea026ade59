package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

const defaultTracerName = "appsync"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "appsync").
	TracerName string

	// TracerProvider provides the tracer.
	// Default: the global provider.
	TracerProvider trace.TracerProvider

	// Filter determines which dispatches to trace. If nil, all are traced.
	Filter func(d synchronizer.Dispatch) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(d synchronizer.Dispatch) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithDispatchFilter sets a filter function for dispatches.
func WithDispatchFilter(filter func(d synchronizer.Dispatch) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(d synchronizer.Dispatch) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func (c OTelConfig) tracer() trace.Tracer {
	if c.TracerProvider != nil {
		return c.TracerProvider.Tracer(c.TracerName)
	}
	return otel.Tracer(c.TracerName)
}

func otelConfig(opts []OTelOption) OTelConfig {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// OpenTelemetry creates middleware that traces every dispatch. The span
// context is passed on to the handler, so mutations and fetches it starts
// join the trace.
//
//	sync := synchronizer.New(synchronizer.Options{
//	    Middleware: []synchronizer.Middleware{
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    },
//	})
//
// The tracer comes from the global OpenTelemetry tracer provider unless
// WithTracerProvider is given.
func OpenTelemetry(opts ...OTelOption) synchronizer.Middleware {
	config := otelConfig(opts)
	tracer := config.tracer()

	return synchronizer.MiddlewareFunc(func(ctx context.Context, d synchronizer.Dispatch, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(d) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("appsync.kind", string(d.Kind)),
			attribute.String("appsync.name", d.Name),
			attribute.String("appsync.subscription", d.Subscription),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(d)...)
		}

		ctx, span := tracer.Start(ctx, spanName(d),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// TraceNavigations records a span for every navigation r commits. The
// returned func stops tracing.
func TraceNavigations(r *router.Router, opts ...OTelOption) (stop func()) {
	tracer := otelConfig(opts).tracer()

	return r.Subscribe(func(entry *router.Entry, action history.Action, prev *router.Entry) {
		attrs := []attribute.KeyValue{
			attribute.String("appsync.path", entry.Path()),
			attribute.String("appsync.action", actionLabel(action)),
		}
		if entry.Match != nil {
			attrs = append(attrs, attribute.String("appsync.route", entry.Match.Path))
		}
		if name := entry.DatasetName(); name != "" {
			attrs = append(attrs, attribute.String("appsync.dataset", name))
		}
		if prev != nil {
			attrs = append(attrs, attribute.String("appsync.previous_path", prev.Path()))
		}

		_, span := tracer.Start(context.Background(), "appsync.navigate",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		span.End()
	}, nil)
}

func spanName(d synchronizer.Dispatch) string {
	return fmt.Sprintf("appsync.%s %s", d.Kind, d.Name)
}
