package synchronizer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/state"
	"github.com/fiftyone-dev/appsync/pkg/stream"
)

// Options configures a Synchronizer.
type Options struct {
	Router      *router.Router
	Session     *state.Store
	Environment gql.Environment
	Dialer      stream.Dialer
	Registries  *Registries

	// Subscription identifies this client. Default: a random UUID.
	Subscription string

	// HandleError receives handler and mutation failures.
	HandleError func(error)

	// Middleware wraps every dispatch, first to last.
	Middleware []Middleware

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Synchronizer keeps a session in step with the server.
type Synchronizer struct {
	router       *router.Router
	session      *state.Store
	env          gql.Environment
	dialer       stream.Dialer
	registries   *Registries
	subscription string
	handleError  func(error)
	middleware   []Middleware
	logger       *slog.Logger
	server       *ServerState

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     ReadyState
	runCancel context.CancelFunc
	hooks     map[string]func(ReadyState)
	hookOrder []string

	unsubscribe func()
	unobserve   func()
}

// New creates a Synchronizer. It starts observing session writes and
// router commits immediately; the event stream opens with Run.
func New(opts Options) *Synchronizer {
	if opts.Subscription == "" {
		opts.Subscription = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registries == nil {
		opts.Registries = NewRegistries()
	}
	if opts.HandleError == nil {
		logger := opts.Logger
		opts.HandleError = func(err error) {
			logger.Error("session sync failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		router:       opts.Router,
		session:      opts.Session,
		env:          opts.Environment,
		dialer:       opts.Dialer,
		registries:   opts.Registries,
		subscription: opts.Subscription,
		handleError:  opts.HandleError,
		middleware:   opts.Middleware,
		logger:       opts.Logger.With("subscription", opts.Subscription),
		server:       &ServerState{},
		ctx:          ctx,
		cancel:       cancel,
		state:        Connecting,
		hooks:        make(map[string]func(ReadyState)),
	}

	s.unobserve = s.session.Observe(s.onWrite)
	if s.router != nil {
		s.unsubscribe = s.router.Subscribe(s.onCommit, nil)
	}
	return s
}

// Subscription returns the client subscription id.
func (s *Synchronizer) Subscription() string {
	return s.subscription
}

// Server returns the last state synchronized with the server.
func (s *Synchronizer) Server() *ServerState {
	return s.server
}

// ReadyState returns the connection state.
func (s *Synchronizer) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns what the app should show.
func (s *Synchronizer) View() View {
	return ViewFor(s.ReadyState())
}

// OnStateChange registers fn for state transitions. The returned func
// unregisters it.
func (s *Synchronizer) OnStateChange(fn func(ReadyState)) (remove func()) {
	id := uuid.NewString()
	s.mu.Lock()
	s.hooks[id] = fn
	s.hookOrder = append(s.hookOrder, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.hooks, id)
		for i, h := range s.hookOrder {
			if h == id {
				s.hookOrder = append(s.hookOrder[:i:i], s.hookOrder[i+1:]...)
				break
			}
		}
	}
}

// Run opens the event stream and dispatches events until the stream
// closes, a handler cancels the connection, ctx is done, or an event
// arrives that has no handler. Run may be called again to reconnect.
//
// A stream that ends because of ctx or a handler cancel returns nil.
func (s *Synchronizer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.runCancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.runCancel = nil
		s.mu.Unlock()
	}()

	s.setState(Connecting)

	events := s.registries.Events.Keys()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}

	conn, err := s.dialer.Dial(ctx, stream.Subscribe{Subscription: s.subscription, Events: names})
	if err != nil {
		s.setState(Closed)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer conn.Close()

	s.setState(Open)
	s.logger.Info("session connected")

	for {
		ev, err := conn.Next(ctx)
		if err != nil {
			s.setState(Closed)
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("session stream closed", "error", err)
			return err
		}

		if err := s.HandleEvent(ctx, ev); err != nil {
			if errors.HasCode(err, errors.CodeEventNotRegistered) {
				s.logger.Error("unhandled server event", "event", ev.Name)
				s.setState(Closed)
				return err
			}
			s.handleError(err)
		}
	}
}

// HandleEvent dispatches one server event. An event with no registered
// handler fails with errors.CodeEventNotRegistered.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev stream.Event) error {
	factory, err := s.registries.Events.Lookup(EventName(ev.Name))
	if err != nil {
		return err
	}

	d := Dispatch{Kind: KindEvent, Name: ev.Name, Subscription: s.subscription}
	return compose(ctx, d, s.middleware, func(ctx context.Context) error {
		return factory(s.handlerContext())(ctx, ev.Data)
	})
}

// Set dispatches an explicit set of name. An unregistered setter fails
// with errors.CodeSetterNotRegistered.
func (s *Synchronizer) Set(ctx context.Context, name SetterName, value any) error {
	factory, err := s.registries.Setters.Lookup(name)
	if err != nil {
		return err
	}

	d := Dispatch{Kind: KindSetter, Name: string(name), Subscription: s.subscription}
	return compose(ctx, d, s.middleware, func(ctx context.Context) error {
		return factory(s.handlerContext())(ctx, value)
	})
}

// onWrite dispatches a UI write to its writer.
func (s *Synchronizer) onWrite(name state.Name, value any) error {
	factory, err := s.registries.Writers.Lookup(name)
	if err != nil {
		return err
	}

	d := Dispatch{Kind: KindWriter, Name: string(name), Subscription: s.subscription}
	return compose(s.ctx, d, s.middleware, func(ctx context.Context) error {
		return factory(s.handlerContext())(ctx, value)
	})
}

// onCommit records pushed and replaced navigations as synchronized and
// reconciles back/forward navigations.
func (s *Synchronizer) onCommit(entry *router.Entry, action history.Action, prev *router.Entry) {
	if action == history.ActionPop {
		s.Reconcile(prev, entry)
		return
	}
	if entry.SharesQuery(prev) {
		// Writers record what they send once the server accepts it.
		return
	}
	s.server.Set(SnapshotOf(entry))
	s.server.SetSample(entry.State.Modal)
}

// Close stops observing the session and the router and closes the event
// stream.
func (s *Synchronizer) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.unobserve()

	s.mu.Lock()
	runCancel := s.runCancel
	s.mu.Unlock()
	if runCancel != nil {
		runCancel()
	}
	s.cancel()
}

func (s *Synchronizer) handlerContext() *HandlerContext {
	s.mu.Lock()
	cancel := s.runCancel
	s.mu.Unlock()
	if cancel == nil {
		cancel = func() {}
	}

	return &HandlerContext{
		Router:       s.router,
		Session:      s.session,
		Environment:  s.env,
		Subscription: s.subscription,
		HandleError:  s.handleError,
		Server:       s.server,
		Logger:       s.logger,
		Cancel:       cancel,
		ReadyState:   s.ReadyState,
	}
}

// setState moves to next. Entering Closed resets the session.
func (s *Synchronizer) setState(next ReadyState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	hooks := make([]func(ReadyState), 0, len(s.hookOrder))
	for _, id := range s.hookOrder {
		hooks = append(hooks, s.hooks[id])
	}
	s.mu.Unlock()

	if prev == next {
		return
	}
	if next == Closed {
		s.session.Reset()
		s.server.Forget()
	}
	s.logger.Debug("session state changed", "from", prev.String(), "to", next.String())
	for _, fn := range hooks {
		fn(next)
	}
}

// commit sends a mutation. A failure reaches HandleError and drops the
// synchronized state, so the next reconciliation compares against the
// previous entry again.
func (s *Synchronizer) commit(req *gql.Request, vars gql.Variables, onCompleted func()) {
	s.logger.Debug("committing mutation", "mutation", req.Name)
	s.handlerContext().Commit(s.ctx, req, vars, func(*gql.Response) {
		if onCompleted != nil {
			onCompleted()
		}
	})
}
