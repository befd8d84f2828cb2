package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 4 << 20

// Request describes one outbound call. Body is re-sent on every attempt.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a successful (2xx) upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// CallOption overrides the client policy for a single call.
type CallOption func(*Policy)

// WithRetries overrides the retry count for one call.
func WithRetries(n int) CallOption {
	return func(p *Policy) { p.Retries = n }
}

// WithTimeout overrides the per-attempt timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(p *Policy) { p.Timeout = d }
}

// WithBackoff overrides the backoff for one call.
func WithBackoff(b BackoffFunc) CallOption {
	return func(p *Policy) { p.Backoff = b }
}

// Client issues requests with bounded retry and exponential backoff.
// A Client is safe for concurrent use; it holds no per-request state.
type Client struct {
	httpClient *http.Client
	policy     Policy
	logger     *zap.Logger
}

// NewClient creates a Client. A nil httpClient uses a fresh http.Client; a
// nil logger disables logging.
func NewClient(httpClient *http.Client, policy Policy, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		policy:     policy.withDefaults(),
		logger:     logger,
	}
}

// Policy returns the client's default policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// PostJSON marshals payload and POSTs it to url.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}, opts ...CallOption) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Headers: h, Body: body}, opts...)
}

// Do performs req, retrying according to the policy. On failure the last
// encountered error is returned as a *Error.
func (c *Client) Do(ctx context.Context, req Request, opts ...CallOption) (*Response, error) {
	policy := c.policy
	for _, opt := range opts {
		opt(&policy)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var resp *Response
	attempts, err := policy.Do(ctx, func(attemptCtx context.Context) error {
		r, err := c.send(attemptCtx, req)
		if err != nil {
			c.logger.Debug("upstream attempt failed",
				zap.String("method", req.Method),
				zap.String("url", redactURL(req.URL)),
				zap.Int("status", StatusOf(err)),
				zap.Error(err))
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var terr *Error
		if errors.As(err, &terr) {
			terr.Attempts = attempts
			return nil, terr
		}
		return nil, &Error{Method: req.Method, URL: redactURL(req.URL), Attempts: attempts, Err: err}
	}
	resp.Attempts = attempts
	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redactURL(uerr.URL)
		}
		return nil, &Error{Method: req.Method, URL: redactURL(req.URL), Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Method: req.Method, URL: redactURL(req.URL), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{
			Method:     req.Method,
			URL:        redactURL(req.URL),
			StatusCode: httpResp.StatusCode,
			Body:       respBody,
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// redactURL drops credentials carried in the query string (Gemini passes its
// API key as ?key=).
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
