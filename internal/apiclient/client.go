// Package apiclient is the single typed client the storefront uses to reach the
// backend REST API. Every call yields a Result; transport problems never
// surface as Go errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	ErrMsgUnauthorized = "Unauthorized"
	ErrMsgNotFound     = "Resource not found"
	ErrMsgNetwork      = "Network error"
	ErrMsgUnavailable  = "Service unavailable"
)

// TokenSource hands out the access token sent as bearer credentials.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, bool)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker[*response]
	settings   circuitbreaker.Settings
	logger     zerolog.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func WithBreakerSettings(s circuitbreaker.Settings) Option {
	return func(cl *Client) { cl.settings = s }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		settings: circuitbreaker.DefaultSettings("storefront-api"),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = circuitbreaker.New[*response](c.settings, c.logger)
	return c
}

// SetTokenSource binds the session after construction; the session itself
// needs the client to refresh tokens.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// SetUnauthorizedHandler registers the hook run on any 401 response.
func (c *Client) SetUnauthorizedHandler(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

type requestOptions struct {
	auth    bool
	headers map[string]string
}

type RequestOption func(*requestOptions)

// WithoutAuth skips the Authorization header.
func WithoutAuth() RequestOption {
	return func(o *requestOptions) { o.auth = false }
}

func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers[key] = value }
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.do(ctx, http.MethodGet, path, nil, opts)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) Result {
	return c.do(ctx, http.MethodPost, path, body, opts)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) Result {
	return c.do(ctx, http.MethodPut, path, body, opts)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) Result {
	return c.do(ctx, http.MethodDelete, path, nil, opts)
}

type response struct {
	status     int
	statusText string
	body       []byte
}

var errServer = errors.New("server error")

func (c *Client) do(ctx context.Context, method, path string, body any, opts []RequestOption) Result {
	log := logger.FromContext(ctx, c.logger).With().Str("method", method).Str("path", path).Logger()

	o := requestOptions{auth: true, headers: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}

	req, err := c.newRequest(ctx, method, path, body, o)
	if err != nil {
		log.Error().Err(err).Msg("failed to build request")
		return Result{Error: ErrMsgNetwork, Details: err.Error()}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		r, err := c.send(req)
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker but is still handed back to the caller
		if r.status >= http.StatusInternalServerError {
			return r, errServer
		}
		return r, nil
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		log.Warn().Msg("backend circuit open, request skipped")
		return Result{Error: ErrMsgUnavailable, Status: http.StatusServiceUnavailable}
	case err != nil && resp == nil:
		log.Error().Err(err).Msg("API request failed")
		return Result{Error: ErrMsgNetwork, Details: err.Error()}
	}

	return c.toResult(ctx, resp)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, o requestOptions) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if o.auth {
		c.mu.RLock()
		ts := c.tokens
		c.mu.RUnlock()
		if ts != nil {
			if token, ok := ts.AccessToken(ctx); ok {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &response{status: resp.StatusCode, statusText: http.StatusText(resp.StatusCode), body: data}, nil
}

func (c *Client) toResult(ctx context.Context, r *response) Result {
	switch {
	case r.status == http.StatusUnauthorized:
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook(ctx)
		}
		return Result{Error: ErrMsgUnauthorized, Status: r.status}
	case r.status == http.StatusNotFound:
		return Result{Error: ErrMsgNotFound, Status: r.status}
	case r.status < 200 || r.status > 299:
		return Result{
			Error:   fmt.Sprintf("Error: %d %s", r.status, r.statusText),
			Details: string(r.body),
			Status:  r.status,
		}
	}

	if len(bytes.TrimSpace(r.body)) == 0 || !json.Valid(r.body) {
		return Result{Status: r.status}
	}
	return Result{Data: json.RawMessage(r.body), Status: r.status}
}
