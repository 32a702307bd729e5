// Package transport executes authenticated JSON requests against the remote
// user and transaction services and normalizes every failure into *Error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/congo-pay/swish/internal/logging"
)

const maxBodyBytes = 4 << 20

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource yields the bearer credential attached to outgoing requests. An
// empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// Request describes one call against the service bound to a Client.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response carries the raw JSON payload of a successful call. Data is nil when
// the service answered with an empty body.
type Response struct {
	Status int
	Data   json.RawMessage
}

// Client is a request executor bound to a single service base URL.
type Client struct {
	baseURL string
	service string
	http    Doer
	tokens  TokenSource
	logger  *slog.Logger
	metrics *Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithTokenSource sets where bearer tokens are read from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics enables request instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithService names the remote service in logs and metric labels.
func WithService(name string) Option {
	return func(c *Client) { c.service = name }
}

// New builds a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		service: "remote",
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Call executes req and decodes a successful payload into out. out may be nil
// when the caller only cares about success.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &Error{StatusCode: resp.Status, Message: "invalid response body: " + err.Error()}
	}
	return nil
}

// Do executes req. Every failure, including a panic inside the HTTP stack, is
// returned as *Error; Do itself never panics.
func (c *Client) Do(ctx context.Context, req Request) (resp Response, err error) {
	start := time.Now()
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("transport panic recovered",
				slog.String("service", c.service),
				slog.String("method", method),
				slog.String("path", req.Path),
				slog.Any("panic", r),
			)
			resp = Response{}
			err = &Error{StatusCode: 0, Message: fmt.Sprintf("unexpected error: %v", r)}
		}
		c.observe(method, resp, err, time.Since(start))
	}()

	httpReq, err := c.newRequest(ctx, method, req)
	if err != nil {
		return Response{}, err
	}

	httpResp, doErr := c.http.Do(httpReq)
	if doErr != nil {
		c.logger.Warn("request failed",
			slog.String("service", c.service),
			slog.String("method", method),
			slog.String("path", req.Path),
			slog.Any("error", doErr),
		)
		return Response{}, networkError(doErr)
	}
	defer httpResp.Body.Close()

	payload, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if readErr != nil {
		return Response{}, networkError(readErr)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		e := &Error{StatusCode: httpResp.StatusCode, Message: errorMessage(payload, httpResp.StatusCode)}
		c.logger.Debug("request rejected",
			slog.String("service", c.service),
			slog.String("method", method),
			slog.String("path", req.Path),
			slog.Int("status", e.StatusCode),
			slog.String("error", e.Message),
		)
		return Response{}, e
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Response{Status: httpResp.StatusCode}, nil
	}
	if !json.Valid(trimmed) {
		return Response{}, &Error{StatusCode: httpResp.StatusCode, Message: "invalid response body: not JSON"}
	}

	c.logger.Debug("request completed",
		slog.String("service", c.service),
		slog.String("method", method),
		slog.String("path", req.Path),
		slog.Int("status", httpResp.StatusCode),
	)
	return Response{Status: httpResp.StatusCode, Data: json.RawMessage(trimmed)}, nil
}

func (c *Client) newRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{StatusCode: 0, Message: "encode request body: " + err.Error()}
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{StatusCode: 0, Message: "build request: " + err.Error()}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) observe(method string, resp Response, err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	status := resp.Status
	var te *Error
	if errors.As(err, &te) {
		status = te.StatusCode
	}
	c.metrics.observe(c.service, method, status, elapsed)
}

func networkError(err error) *Error {
	msg := "network error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{StatusCode: 0, Message: msg}
}

func errorMessage(payload []byte, status int) string {
	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		switch v := body.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
