// Package sessiontest provides a fake session backend: a GraphQL endpoint
// that keeps a session record up to date from the mutations it receives,
// and an event stream the test can push server events through.
//
//	srv := sessiontest.New()
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
//
//	sub, _ := srv.WaitForClient(ctx)
//	srv.Push("select_samples", map[string]any{"sample_ids": []string{"a"}})
package sessiontest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/fiftyone-dev/appsync/pkg/stream"
)

// Paths served by Handler.
const (
	GraphQLPath = "/graphql"
	EventsPath  = "/events"
	HealthPath  = "/healthz"
)

// Resolver answers a GraphQL operation with its data, or fails it with an
// error that is sent back as a GraphQL error.
type Resolver func(vars map[string]any) (any, error)

// Request is a recorded GraphQL request.
type Request struct {
	Name      string
	Query     string
	Variables map[string]any
}

// Session is the backend's view of the client session.
type Session struct {
	Dataset       string          `json:"dataset"`
	View          json.RawMessage `json:"view,omitempty"`
	SavedViewSlug string          `json:"saved_view_slug,omitempty"`
	Selected      []string        `json:"selected"`
	GroupSlice    string          `json:"group_slice,omitempty"`
	Spaces        json.RawMessage `json:"spaces,omitempty"`
	SampleID      string          `json:"-"`
	GroupID       string          `json:"-"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSession sets the initial session.
func WithSession(session Session) Option {
	return func(s *Server) {
		s.session = session
	}
}

// Server is a fake session backend. It is safe for concurrent use.
type Server struct {
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu        sync.Mutex
	resolvers map[string]Resolver
	requests  []Request
	session   Session
	clients   map[*client]struct{}
	connected chan string
}

type client struct {
	sub    stream.Subscribe
	events map[string]bool
	conn   *websocket.Conn
	wmu    sync.Mutex
}

func (c *client) send(ev stream.Event) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(ev)
}

// New creates a server.
func New(opts ...Option) *Server {
	s := &Server{
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:    slog.Default(),
		resolvers: make(map[string]Resolver),
		clients:   make(map[*client]struct{}),
		connected: make(chan string, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session.Selected == nil {
		s.session.Selected = []string{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Post(GraphQLPath, s.serveGraphQL)
	r.Get(EventsPath, s.serveEvents)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Handle installs the resolver for the named operation.
func (s *Server) Handle(name string, r Resolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers[name] = r
}

// HandleData answers the named operation with fixed JSON data.
func (s *Server) HandleData(name, data string) {
	s.Handle(name, func(map[string]any) (any, error) {
		return json.RawMessage(data), nil
	})
}

// Requests returns every GraphQL request received.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestNames returns the operation names of every request received.
func (s *Server) RequestNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.requests))
	for i, r := range s.requests {
		names[i] = r.Name
	}
	return names
}

// Session returns the backend's session record.
func (s *Server) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Clients returns the number of connected event streams.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// WaitForClient waits for the next event stream and returns its
// subscription id.
func (s *Server) WaitForClient(ctx context.Context) (string, error) {
	select {
	case sub := <-s.connected:
		return sub, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Push sends an event to every client subscribed to it. It fails when no
// client is.
func (s *Server) Push(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ev := stream.Event{Name: event, Data: raw}

	s.mu.Lock()
	var targets []*client
	for c := range s.clients {
		if c.events[event] {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return fmt.Errorf("sessiontest: no client subscribed to %q", event)
	}
	for _, c := range targets {
		if err := c.send(ev); err != nil {
			return err
		}
	}
	return nil
}

// PushState sends the backend session as a state_update event.
func (s *Server) PushState() error {
	return s.Push("state_update", map[string]any{"state": s.Session()})
}

// Disconnect closes every event stream, as if the server went away.
func (s *Server) Disconnect() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.conn.Close()
	}
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   any            `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

func (s *Server) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Name: req.OperationName, Query: req.Query, Variables: req.Variables})
	resolver := s.resolvers[req.OperationName]
	s.mu.Unlock()

	var resp graphQLResponse
	switch {
	case resolver != nil:
		data, err := resolver(req.Variables)
		if err != nil {
			resp.Errors = []graphQLError{{Message: err.Error()}}
		} else {
			resp.Data = data
		}
	default:
		resp.Data = s.apply(req.OperationName, req.Variables)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encode graphql response", "error", err)
	}
}

// apply updates the session record from a session mutation. Other
// operations answer with empty data.
func (s *Server) apply(name string, vars map[string]any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	str := func(key string) string {
		v, _ := vars[key].(string)
		return v
	}
	raw := func(key string) json.RawMessage {
		if vars[key] == nil {
			return nil
		}
		b, _ := json.Marshal(vars[key])
		return b
	}

	switch name {
	case "setView":
		s.session.Dataset = str("datasetName")
		s.session.View = raw("view")
		s.session.SavedViewSlug = str("savedViewSlug")
	case "setDataset":
		s.session = Session{Dataset: str("name"), Selected: []string{}}
	case "setGroupSlice":
		s.session.GroupSlice = str("slice")
	case "setSpaces":
		s.session.Spaces = raw("spaces")
	case "setSample":
		s.session.SampleID = str("id")
		s.session.GroupID = str("groupId")
	case "setSelected":
		selected := []string{}
		if list, ok := vars["selected"].([]any); ok {
			for _, v := range list {
				if id, ok := v.(string); ok {
					selected = append(selected, id)
				}
			}
		}
		s.session.Selected = selected
	default:
		return map[string]any{}
	}
	return map[string]any{name: true}
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade event stream", "error", err)
		return
	}

	var sub stream.Subscribe
	if err := conn.ReadJSON(&sub); err != nil {
		s.logger.Warn("read subscribe", "error", err)
		conn.Close()
		return
	}

	c := &client{sub: sub, events: make(map[string]bool, len(sub.Events)), conn: conn}
	for _, e := range sub.Events {
		c.events[e] = true
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("client subscribed", "subscription", sub.Subscription, "events", len(sub.Events))

	select {
	case s.connected <- sub.Subscription:
	default:
	}

	// Clients never send after subscribing; reading detects the close.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	conn.Close()
}
