package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fiftyone-dev/appsync/internal/errors"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithStore sets the response store.
func WithStore(s *Store) ClientOption {
	return func(c *Client) {
		c.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Client is an Environment that speaks GraphQL over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	store    *Store
	logger   *slog.Logger
}

var _ Environment = (*Client)(nil)

// NewClient creates a client posting to endpoint (e.g., "http://localhost:5151/graphql").
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewStore(DefaultStoreConfig())
	}
	return c
}

// Store returns the client's response store.
func (c *Client) Store() *Store {
	return c.store
}

// Fetch starts a query fetch. Under StoreOrNetwork a fresh stored response
// settles the operation immediately.
func (c *Client) Fetch(ctx context.Context, req *Request, vars Variables, policy FetchPolicy) Operation {
	key := Key(req, vars)
	if policy != NetworkOnly {
		if resp := c.store.Get(key); resp != nil {
			c.logger.Debug("query served from store", "operation", req.Name)
			return Settled(req, vars, resp, nil)
		}
	}

	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	op := newOperation(req, vars, cancel)
	go func() {
		defer cancel()
		resp, err := c.do(fetchCtx, req, vars)
		if err != nil {
			err = errors.New(errors.CodeQueryFailed).WithSubject(req.Name).Wrap(err)
			c.logger.Warn("query failed", "operation", req.Name, "error", err)
			op.settle(nil, err)
			return
		}
		c.store.Set(key, resp)
		op.settle(resp, nil)
	}()
	return op
}

// Commit sends a mutation in the background. A successful mutation clears
// the response store since any cached query may now be stale.
func (c *Client) Commit(ctx context.Context, req *Request, vars Variables, cb MutationCallbacks) {
	go func() {
		resp, err := c.do(context.WithoutCancel(ctx), req, vars)
		if err != nil {
			err = errors.New(errors.CodeMutationFailed).WithSubject(req.Name).Wrap(err)
			c.logger.Warn("mutation failed", "operation", req.Name, "error", err)
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		c.store.Clear()
		if cb.OnCompleted != nil {
			cb.OnCompleted(resp)
		}
	}()
}

type payload struct {
	Query         string    `json:"query"`
	OperationName string    `json:"operationName,omitempty"`
	Variables     Variables `json:"variables"`
}

func (c *Client) do(ctx context.Context, req *Request, vars Variables) (*Response, error) {
	if vars == nil {
		vars = Variables{}
	}
	body, err := json.Marshal(payload{Query: req.Text, OperationName: req.Name, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", httpResp.StatusCode, bytes.TrimSpace(msg))
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp, nil
}
