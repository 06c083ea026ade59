package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fiftyone-dev/appsync/internal/errors"
)

// Pipe is an in-memory Dialer. Events sent with Send go to the most
// recently dialed connection.
type Pipe struct {
	mu      sync.Mutex
	conn    *pipeConn
	subs    []Subscribe
	dialErr error
	dialed  chan Subscribe
}

// NewPipe creates a pipe.
func NewPipe() *Pipe {
	return &Pipe{dialed: make(chan Subscribe, 16)}
}

// Dial opens a connection, or fails with errors.CodeStreamConnect after
// FailDial.
func (p *Pipe) Dial(ctx context.Context, sub Subscribe) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dialErr != nil {
		return nil, errors.New(errors.CodeStreamConnect).WithSubject("pipe").Wrap(p.dialErr)
	}
	if p.conn != nil {
		p.conn.close(ErrClosed)
	}
	p.conn = &pipeConn{events: make(chan Event, 64), done: make(chan struct{})}
	p.subs = append(p.subs, sub)

	select {
	case p.dialed <- sub:
	default:
	}
	return p.conn, nil
}

// Dialed delivers the Subscribe message of each dial.
func (p *Pipe) Dialed() <-chan Subscribe {
	return p.dialed
}

// Subscriptions returns every Subscribe message received.
func (p *Pipe) Subscriptions() []Subscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Subscribe(nil), p.subs...)
}

// FailDial makes future dials fail with err. A nil err re-enables dialing.
func (p *Pipe) FailDial(err error) {
	p.mu.Lock()
	p.dialErr = err
	p.mu.Unlock()
}

// Send pushes an event with data encoded as JSON.
func (p *Pipe) Send(name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.SendRaw(Event{Name: name, Data: raw})
}

// SendRaw pushes ev as is.
func (p *Pipe) SendRaw(ev Event) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("stream: pipe not dialed")
	}
	select {
	case conn.events <- ev:
		return nil
	case <-conn.done:
		return conn.err
	}
}

// Drop closes the current connection as if the server went away.
func (p *Pipe) Drop() {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn != nil {
		conn.close(fmt.Errorf("%w: dropped", ErrClosed))
	}
}

type pipeConn struct {
	events chan Event

	once sync.Once
	done chan struct{}
	err  error
}

func (c *pipeConn) close(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *pipeConn) Next(ctx context.Context) (Event, error) {
	return next(ctx, c.events, c.done, func() error { return c.err })
}

func (c *pipeConn) Close() error {
	c.close(ErrClosed)
	return nil
}
