// Package boardclient talks to the hot-seat board API.
package boardclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/hotseat-chess/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int
	chessdto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board api error: status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

// WithRetry sets how often idempotent reads are attempted.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Start(ctx context.Context) (*chessdto.SessionState, error) {
	var st chessdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/sessions", nil, &st, false); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) State(ctx context.Context, sessionID string) (*chessdto.SessionState, error) {
	var st chessdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodGet, sessionPath(sessionID, ""), nil, &st, true); err != nil {
		return nil, err
	}
	return &st, nil
}

// Move submits from-to. A rejected move comes back with Accepted=false and
// no error.
func (c *Client) Move(ctx context.Context, sessionID, from, to string) (*chessdto.MoveResponse, error) {
	var resp chessdto.MoveResponse
	req := chessdto.MoveRequest{From: from, To: to}
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "/moves"), req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Undo(ctx context.Context, sessionID string) (*chessdto.SessionState, error) {
	var st chessdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "/undo"), nil, &st, false); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Reset(ctx context.Context, sessionID string) (*chessdto.SessionState, error) {
	var st chessdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "/reset"), nil, &st, false); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) End(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, sessionPath(sessionID, ""), nil, nil, false)
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + strings.TrimSpace(sessionID) + suffix
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			apiErr := decodeError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
		} else {
			if out != nil && len(resp.Body()) > 0 {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if err := json.Unmarshal(body, &e.DomainError); err != nil || e.Code == "" {
		e.Code = fmt.Sprintf("http_%d", status)
		e.Message = truncate(string(body), 512)
	}
	return e
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
