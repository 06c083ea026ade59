package synchronizer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/gql"
	"github.com/fiftyone-dev/appsync/pkg/registry"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/state"
)

// HandlerContext is what handler factories are built from.
type HandlerContext struct {
	Router      *router.Router
	Session     *state.Store
	Environment gql.Environment

	// Subscription identifies this client to the server. Every mutation
	// carries it.
	Subscription string

	HandleError func(error)

	// Server is the state last synchronized with the server. Handlers that
	// apply server state record it here.
	Server *ServerState

	Logger *slog.Logger

	// Cancel closes the event connection. It is a no-op outside Run.
	Cancel context.CancelFunc

	// ReadyState reports the current connection state.
	ReadyState func() ReadyState
}

// EventHandler handles one server event.
type EventHandler func(ctx context.Context, data json.RawMessage) error

// ValueHandler handles a written or set session value.
type ValueHandler func(ctx context.Context, value any) error

// EventHandlerFactory builds the handler for a server event.
type EventHandlerFactory func(hc *HandlerContext) EventHandler

// WriterFactory builds the handler for UI writes of a session field.
type WriterFactory func(hc *HandlerContext) ValueHandler

// SetterFactory builds the handler for explicit sets of a value.
type SetterFactory func(hc *HandlerContext) ValueHandler

// Registries are the handler maps a Synchronizer dispatches through.
type Registries struct {
	Events  *registry.Registry[EventName, EventHandlerFactory]
	Writers *registry.Registry[state.Name, WriterFactory]
	Setters *registry.Registry[SetterName, SetterFactory]
}

// NewRegistries creates empty registries.
func NewRegistries() *Registries {
	return &Registries{
		Events:  registry.New[EventName, EventHandlerFactory]("event handler", errors.CodeEventNotRegistered),
		Writers: registry.New[state.Name, WriterFactory]("writer", errors.CodeWriterNotRegistered),
		Setters: registry.New[SetterName, SetterFactory]("setter", errors.CodeSetterNotRegistered),
	}
}

// Verify reports every server event, session field and setter without a
// registered handler. Each kind is reported under its own code.
func (r *Registries) Verify() error {
	var errs []error
	if missing := r.Events.Missing(Events()); len(missing) > 0 {
		errs = append(errs, missingHandlers(errors.CodeEventNotRegistered, "events", missing))
	}
	if missing := r.Writers.Missing(state.Names()); len(missing) > 0 {
		errs = append(errs, missingHandlers(errors.CodeWriterNotRegistered, "writers", missing))
	}
	if missing := r.Setters.Missing(Setters()); len(missing) > 0 {
		errs = append(errs, missingHandlers(errors.CodeSetterNotRegistered, "setters", missing))
	}
	return stderrors.Join(errs...)
}

func missingHandlers[K ~string](code, kind string, names []K) error {
	list := make([]string, len(names))
	for i, n := range names {
		list[i] = string(n)
	}
	return errors.New(code).WithDetail("missing " + kind + ": " + strings.Join(list, ", "))
}

// Commit sends a mutation carrying the client subscription. onCompleted
// runs after the server accepts it. A failure drops the synchronized
// state and reaches HandleError.
func (hc *HandlerContext) Commit(ctx context.Context, req *gql.Request, vars gql.Variables, onCompleted func(*gql.Response)) {
	if vars == nil {
		vars = gql.Variables{}
	}
	vars["subscription"] = hc.Subscription

	hc.Environment.Commit(ctx, req, vars, gql.MutationCallbacks{
		OnCompleted: onCompleted,
		OnError: func(err error) {
			hc.Server.Forget()
			hc.HandleError(err)
		},
	})
}
