// Package stream carries the server-push event stream of a session.
//
// A client dials the stream with a Subscribe message naming the events it
// handles; the server then pushes Event messages until either side closes.
// WebSocketDialer speaks this over a WebSocket, Pipe is an in-memory
// stream for tests.
package stream

import (
	"context"
	"encoding/json"
	stderrors "errors"
)

// ErrClosed is returned by Conn.Next once the stream has closed.
var ErrClosed = stderrors.New("stream: connection closed")

// Event is a message pushed by the server.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Subscribe is the first message a client sends.
type Subscribe struct {
	Subscription string   `json:"subscription"`
	Events       []string `json:"events"`
}

// Conn is an open event stream.
type Conn interface {
	// Next blocks for the next event. It returns ErrClosed (possibly
	// wrapped) once the stream is gone.
	Next(ctx context.Context) (Event, error)

	// Close closes the stream.
	Close() error
}

// Dialer opens event streams.
type Dialer interface {
	Dial(ctx context.Context, sub Subscribe) (Conn, error)
}
