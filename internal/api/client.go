package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quizdesk/quizdesk/internal/logging"
)

// Client talks to the platform backend. All requests carry the bearer
// token from the token source; any 401 fires the auth-failure hook before
// the error is returned, so individual call sites never handle expiry.
type Client struct {
	base          string
	http          *http.Client
	token         func() string
	onAuthFailure func()
	log           *logging.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying transport. Tests point it at an
// httptest server's client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithTokenSource supplies the current bearer token. An empty return means
// the request goes out unauthenticated.
func WithTokenSource(fn func() string) ClientOption {
	return func(c *Client) { c.token = fn }
}

// WithAuthFailureHook registers the single global handler for 401
// responses. The session wires its invalidation here.
func WithAuthFailureHook(fn func()) ClientOption {
	return func(c *Client) { c.onAuthFailure = fn }
}

func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string { return c.base }

// do runs one JSON round trip. in == nil sends no body; out == nil
// discards the response body.
func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.round(op, req, out)
}

// round sends a prepared request, applying auth and the shared response
// handling. Multipart upload builds its own request and comes through here
// too.
func (c *Client) round(op string, req *http.Request, out interface{}) error {
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		apiErr := &Error{Status: res.StatusCode, Op: op, Message: readErrorMessage(res.Body)}
		if res.StatusCode == http.StatusUnauthorized && c.onAuthFailure != nil {
			c.log.Debug("auth failure, invalidating session", "op", op)
			c.onAuthFailure()
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// readErrorMessage extracts a printable message from an error body. The
// backend writes {"error": ...}; FastAPI-style {"detail": ...} and plain
// text are tolerated.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		for _, m := range []string{payload.Error, payload.Detail, payload.Message} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// Health checks the backend's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/healthz", nil, nil)
}
