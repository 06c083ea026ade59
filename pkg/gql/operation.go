package gql

import (
	"context"
	"sync"
)

// operation is the Operation implementation shared by Client and tests.
type operation struct {
	req    *Request
	vars   Variables
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
	resp *Response
	err  error
}

func newOperation(req *Request, vars Variables, cancel context.CancelFunc) *operation {
	return &operation{
		req:    req,
		vars:   vars,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Settled returns an Operation that already holds resp or err.
func Settled(req *Request, vars Variables, resp *Response, err error) Operation {
	op := newOperation(req, vars, nil)
	op.settle(resp, err)
	return op
}

func (o *operation) settle(resp *Response, err error) {
	o.once.Do(func() {
		o.resp = resp
		o.err = err
		close(o.done)
	})
}

func (o *operation) Request() *Request     { return o.req }
func (o *operation) Variables() Variables { return o.vars }

func (o *operation) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-o.done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *operation) Close() {
	if o.cancel != nil {
		o.cancel()
	}
	o.settle(nil, context.Canceled)
}
