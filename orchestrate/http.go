package orchestrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pingidentity/ping-go/internal/reliability"
)

// HTTPClient sends requests for the workflow
type HTTPClient interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClientFunc is a function adapter for HTTPClient
type HTTPClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Send implements HTTPClient
func (f HTTPClientFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

var errRetryableStatus = errors.New("retryable http status")

// DefaultHTTPClient sends requests with net/http. Redirects are not
// followed so that protocol modules can read Location headers. GET and
// DELETE requests are retried on network errors and 502/503/504.
type DefaultHTTPClient struct {
	client  *http.Client
	retry   reliability.RetryPolicy
	breaker *reliability.CircuitBreaker
	logger  *slog.Logger
	maxBody int64
}

var _ HTTPClient = (*DefaultHTTPClient)(nil)

// HTTPClientOption configures the default HTTP client
type HTTPClientOption func(*DefaultHTTPClient)

// WithHTTPTimeout sets the per-request timeout
func WithHTTPTimeout(timeout time.Duration) HTTPClientOption {
	return func(c *DefaultHTTPClient) {
		c.client.Timeout = timeout
	}
}

// WithHTTPLogger sets the logger
func WithHTTPLogger(logger *slog.Logger) HTTPClientOption {
	return func(c *DefaultHTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport sets the underlying round tripper
func WithTransport(rt http.RoundTripper) HTTPClientOption {
	return func(c *DefaultHTTPClient) {
		c.client.Transport = rt
	}
}

// WithRetry retries idempotent requests up to maxRetries times with
// exponential backoff starting at initial. Zero disables retries.
func WithRetry(maxRetries int, initial time.Duration) HTTPClientOption {
	return func(c *DefaultHTTPClient) {
		if maxRetries <= 0 {
			c.retry = reliability.NoRetry
			return
		}
		c.retry = reliability.NewExponentialBackoff(initial, 10*initial, 2.0, maxRetries)
	}
}

// WithCircuitBreaker stops sending after threshold consecutive network
// failures until cooldown has passed.
func WithCircuitBreaker(threshold int, cooldown time.Duration) HTTPClientOption {
	return func(c *DefaultHTTPClient) {
		c.breaker = reliability.NewCircuitBreaker(
			reliability.WithName("http"),
			reliability.WithFailureThreshold(threshold),
			reliability.WithTimeout(cooldown),
			reliability.WithStateChange(func(name string, from, to reliability.State, reason string) {
				c.logger.Warn("circuit breaker state changed", "from", from, "to", to, "reason", reason)
			}),
		)
	}
}

// WithMaxBodySize caps the response body size. Larger bodies fail with
// ErrBodyTooLarge.
func WithMaxBodySize(n int64) HTTPClientOption {
	return func(c *DefaultHTTPClient) {
		c.maxBody = n
	}
}

// NewHTTPClient creates the default HTTP client
func NewHTTPClient(options ...HTTPClientOption) *DefaultHTTPClient {
	c := &DefaultHTTPClient{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retry:   reliability.NewExponentialBackoff(200*time.Millisecond, 2*time.Second, 2.0, 2),
		logger:  slog.Default(),
		maxBody: 1 << 20,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Send implements HTTPClient
func (c *DefaultHTTPClient) Send(ctx context.Context, req *Request) (*Response, error) {
	policy := c.retry
	if !idempotent(req.Method()) {
		policy = reliability.NoRetry
	}

	var resp *Response
	err := reliability.Retry(ctx, policy, func() error {
		r, err := c.execute(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		if retryableStatus(r.Status) {
			return errRetryableStatus
		}
		return nil
	})

	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errRetryableStatus) && resp != nil:
		return resp, nil
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) && !errors.Is(err, ErrMissingURL) {
		err = &NetworkError{Op: string(req.Method()), URL: req.redactedURL(), Err: err}
	}
	return nil, err
}

func (c *DefaultHTTPClient) execute(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response

	call := func() error {
		httpReq, err := req.HTTPRequest(ctx)
		if err != nil {
			return reliability.Permanent(err)
		}

		res, err := c.client.Do(httpReq)
		if err != nil {
			return &NetworkError{Op: string(req.Method()), URL: req.redactedURL(), Err: err}
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
		if err != nil {
			return &NetworkError{Op: "read", URL: req.redactedURL(), Err: err}
		}
		if int64(len(body)) > c.maxBody {
			return &NetworkError{Op: "read", URL: req.redactedURL(), Err: ErrBodyTooLarge}
		}

		resp = &Response{
			Request: req,
			Status:  res.StatusCode,
			Header:  res.Header,
			Body:    body,
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		c.logger.Debug("http request failed", "method", req.Method(), "url", req.redactedURL(), "error", err)
		return nil, err
	}
	return resp, nil
}

func idempotent(m Method) bool {
	return m == GET || m == DELETE
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
