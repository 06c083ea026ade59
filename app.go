// Package appsync is the headless client core of the dataset app: it
// resolves locations to pages with preloaded queries and keeps the
// client session in step with the backend session process.
//
//	cfg, _ := config.LoadOrDefault(".")
//	app, err := appsync.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//	return app.Run(ctx)
package appsync

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/fiftyone-dev/appsync/internal/config"
	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/handlers"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/middleware"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/routes"
	"github.com/fiftyone-dev/appsync/pkg/state"
	"github.com/fiftyone-dev/appsync/pkg/stream"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// Version is the appsync release.
const Version = "0.4.0"

// =============================================================================
// Options
// =============================================================================

type options struct {
	logger         *slog.Logger
	httpClient     *http.Client
	registry       *prometheus.Registry
	tracerProvider trace.TracerProvider
	handleError    func(error)
	initialPath    string
	history        history.History
	environment    gql.Environment
	dialer         stream.Dialer
	subscription   string
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets the client used for GraphQL requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with.
// Default: a fresh registry per App.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithErrorHandler receives navigation, handler and mutation failures.
// Default: log at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.handleError = fn
	}
}

// WithInitialPath sets the location the App starts at. Default: "/".
func WithInitialPath(path string) Option {
	return func(o *options) {
		o.initialPath = path
	}
}

// WithHistory replaces the in-memory history. WithInitialPath is ignored.
func WithHistory(h history.History) Option {
	return func(o *options) {
		o.history = h
	}
}

// WithEnvironment replaces the GraphQL client built from the config.
func WithEnvironment(env gql.Environment) Option {
	return func(o *options) {
		o.environment = env
	}
}

// WithDialer replaces the WebSocket dialer built from the config.
func WithDialer(d stream.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithSubscription sets the client subscription id. Default: a random UUID.
func WithSubscription(id string) Option {
	return func(o *options) {
		o.subscription = id
	}
}

// =============================================================================
// App Type
// =============================================================================

// App wires the router, the session store and the synchronizer together
// with the application's routes and handlers.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	history      history.History
	environment  gql.Environment
	router       *router.Router
	session      *state.Store
	synchronizer *synchronizer.Synchronizer
	metrics      *middleware.Metrics

	stops []func()
}

// New creates an App from cfg. A nil cfg means the defaults.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{initialPath: "/"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if o.handleError == nil {
		logger := o.logger
		o.handleError = func(err error) {
			logger.Error("appsync error", "error", err)
		}
	}
	if o.history == nil {
		o.history = history.NewMemory(o.initialPath, history.State{})
	}
	if o.environment == nil {
		clientOpts := []gql.ClientOption{
			gql.WithStore(gql.NewStore(gql.StoreConfig{
				TTL:        cfg.QueryTTL(),
				MaxEntries: cfg.Router.QueryMaxEntries,
			})),
			gql.WithLogger(o.logger),
		}
		if o.httpClient != nil {
			clientOpts = append(clientOpts, gql.WithHTTPClient(o.httpClient))
		}
		o.environment = gql.NewClient(cfg.GraphQLURL(), clientOpts...)
	}
	if o.dialer == nil {
		d := stream.NewWebSocketDialer(cfg.EventsURL())
		d.Logger = o.logger
		o.dialer = d
	}

	regs := synchronizer.NewRegistries()
	handlers.Register(regs)
	if err := regs.Verify(); err != nil {
		return nil, err
	}

	r := router.New(router.Options{
		Routes:      routes.Routes(),
		History:     o.history,
		Environment: o.environment,
		HandleError: o.handleError,
		Scheduler:   router.NewFrameScheduler(cfg.PendingInterval()),
		Logger:      o.logger,
	})

	metrics := middleware.NewMetrics(
		middleware.WithNamespace(cfg.Telemetry.MetricsNamespace),
		middleware.WithRegistry(o.registry),
	)
	otelOpts := []middleware.OTelOption{middleware.WithTracerName(cfg.Telemetry.TracerName)}
	if o.tracerProvider != nil {
		otelOpts = append(otelOpts, middleware.WithTracerProvider(o.tracerProvider))
	}

	session := state.New()
	syncer := synchronizer.New(synchronizer.Options{
		Router:       r,
		Session:      session,
		Environment:  o.environment,
		Dialer:       o.dialer,
		Registries:   regs,
		Subscription: o.subscription,
		HandleError:  o.handleError,
		Middleware: []synchronizer.Middleware{
			middleware.Recover(o.logger),
			middleware.Logging(o.logger),
			middleware.OpenTelemetry(otelOpts...),
			metrics.Middleware(),
		},
		Logger: o.logger,
	})

	app := &App{
		config:       cfg,
		logger:       o.logger,
		registry:     o.registry,
		history:      o.history,
		environment:  o.environment,
		router:       r,
		session:      session,
		synchronizer: syncer,
		metrics:      metrics,
	}
	app.stops = append(app.stops,
		metrics.ObserveRouter(r),
		metrics.ObserveSynchronizer(syncer),
		middleware.TraceNavigations(r, otelOpts...),
	)
	return app, nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Run loads the initial page and keeps the session connected until ctx is
// done or the server closes the session. A dropped stream is redialed
// after the configured reconnect delay; an event with no handler ends Run
// with its error.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.router.Load(ctx, false); err != nil {
		return err
	}

	delay := a.config.ReconnectDelay()
	for {
		err := a.synchronizer.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			a.logger.Info("session closed")
			return nil
		}
		if errors.HasCode(err, errors.CodeEventNotRegistered) {
			return err
		}

		a.logger.Warn("session disconnected, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// Close stops the synchronizer and the router.
func (a *App) Close() {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	a.synchronizer.Close()
	a.router.Close()
}

// MetricsHandler serves the App's Prometheus metrics.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// =============================================================================
// Getters
// =============================================================================

// Config returns the App configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Router returns the navigation router.
func (a *App) Router() *router.Router {
	return a.router
}

// Session returns the client session store. Writes to it are sent to the
// server.
func (a *App) Session() *state.Store {
	return a.session
}

// Synchronizer returns the session synchronizer.
func (a *App) Synchronizer() *synchronizer.Synchronizer {
	return a.synchronizer
}

// Environment returns the GraphQL environment.
func (a *App) Environment() gql.Environment {
	return a.environment
}

// History returns the navigation history.
func (a *App) History() history.History {
	return a.history
}

// Metrics returns the App's collectors.
func (a *App) Metrics() *middleware.Metrics {
	return a.metrics
}

// View reports what the UI should show for the current connection state.
func (a *App) View() synchronizer.View {
	return a.synchronizer.View()
}
