package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// HTTP is the production Doer backed by net/http.
type HTTP struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// HTTPConfig holds configuration for the HTTP transport.
type HTTPConfig struct {
	Timeout           time.Duration // Default per-request timeout
	RequestsPerSecond float64       // Zero disables outbound rate limiting
	Burst             int
	Client            *http.Client // Optional, e.g. for tests
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTP{
		client:  client,
		timeout: timeout,
		limiter: limiter,
	}
}

// Do performs the request, bounded by the request or default timeout.
// The limiter wait counts against the same timeout.
func (t *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = t.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(err error) error {
		return &Error{
			Method:  req.Method,
			URL:     req.URL,
			Timeout: isTimeoutCause(err),
			Err:     err,
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met; that is still a timeout.
			if ctx.Err() == nil {
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return nil, fail(err)
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fail(fmt.Errorf("failed to create request: %w", err))
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(fmt.Errorf("failed to read response body: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Ensure HTTP implements Doer interface
var _ Doer = (*HTTP)(nil)
