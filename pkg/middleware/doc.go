// Package middleware provides observability for the session synchronizer
// and router.
//
// # OpenTelemetry
//
// OpenTelemetry traces every event, write and set dispatch. Handlers
// receive the span context, so the mutations they send join the trace:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithDispatchFilter(func(d synchronizer.Dispatch) bool {
//	        return d.Kind != synchronizer.KindWriter
//	    }),
//	)
//
// TraceNavigations records a span for each committed navigation.
//
// # Prometheus Metrics
//
// Metrics counts and times dispatches, counts navigations and tracks the
// connection state:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("myapp"))
//	sync := synchronizer.New(synchronizer.Options{
//	    Middleware: []synchronizer.Middleware{m.Middleware()},
//	})
//	defer m.ObserveRouter(r)()
//	defer m.ObserveSynchronizer(sync)()
//
// # Logging
//
// Logging writes one structured record per dispatch. Recover turns handler
// panics into errors; put it first so it sees panics from the other
// middleware too.
package middleware
