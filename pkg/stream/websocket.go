package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fiftyone-dev/appsync/internal/errors"
)

// WebSocketDialer dials event streams over WebSocket.
type WebSocketDialer struct {
	// URL is the stream endpoint (e.g., "ws://localhost:5151/events").
	URL string

	// Header is sent with the handshake.
	Header http.Header

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewWebSocketDialer creates a dialer for url.
func NewWebSocketDialer(url string) *WebSocketDialer {
	return &WebSocketDialer{URL: url}
}

// Dial connects and sends sub. Connection failures carry
// errors.CodeStreamConnect.
func (d *WebSocketDialer) Dial(ctx context.Context, sub Subscribe) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, errors.New(errors.CodeStreamConnect).WithSubject(d.URL).Wrap(err)
	}

	msg, err := json.Marshal(sub)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		conn.Close()
		return nil, errors.New(errors.CodeStreamConnect).WithSubject(d.URL).Wrap(err)
	}

	c := &wsConn{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	events chan Event
	logger *slog.Logger

	once sync.Once
	done chan struct{}
	err  error
}

func (c *wsConn) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			c.logger.Warn("dropping malformed event", "error", err)
			c.fail(errors.New(errors.CodeStreamPayload).Wrap(err))
			return
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) fail(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsConn) Next(ctx context.Context) (Event, error) {
	return next(ctx, c.events, c.done, func() error { return c.err })
}

func (c *wsConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.fail(ErrClosed)
	return nil
}

// next drains buffered events before reporting a closed stream.
func next(ctx context.Context, events <-chan Event, done <-chan struct{}, err func() error) (Event, error) {
	select {
	case ev := <-events:
		return ev, nil
	default:
	}

	select {
	case ev := <-events:
		return ev, nil
	case <-done:
		select {
		case ev := <-events:
			return ev, nil
		default:
		}
		return Event{}, err()
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
