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
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 8 << 20
)

// Transport issues requests to remote analytics APIs.
type Transport interface {
	Get(ctx context.Context, endpoint string, params url.Values, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Response, error)
}

// Response is a fully read remote response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func (r *Response) String() string {
	return string(r.Body)
}

// Client is the default Transport. The zero retry policy issues each request once.
type Client struct {
	http    *http.Client
	timeout time.Duration
	retry   func() backoff.BackOff
	metrics *observability.Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithDefaultTimeout bounds requests that do not set their own timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry enables retries of network failures and 5xx responses using a fresh policy per request.
func WithRetry(policy func() backoff.BackOff) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, opts ...RequestOption) (*Response, error) {
	r := newRequest(http.MethodGet, endpoint, append([]RequestOption{WithQuery(params)}, opts...))
	return c.do(ctx, r)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Response, error) {
	r := newRequest(http.MethodPost, endpoint, opts)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	r.body = payload
	r.header.Set("Content-Type", "application/json")
	return c.do(ctx, r)
}

func (c *Client) do(ctx context.Context, r *request) (*Response, error) {
	target, err := r.url()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint %q", domain.ErrInvalidInput, r.endpoint)
	}

	timeout := c.timeout
	if r.timeout > 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.retry == nil {
		return c.send(ctx, r, target, timeout)
	}

	var last *Response
	operation := func() (*Response, error) {
		resp, err := c.send(ctx, r, target, timeout)
		if err != nil {
			if errors.Is(err, domain.ErrTimeout) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		last = resp
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%s responded with status %d", r.service, resp.StatusCode)
		}
		return resp, nil
	}

	resp, err := backoff.RetryWithData(operation, backoff.WithContext(c.retry(), ctx))
	if err != nil && last != nil {
		return last, nil
	}
	// The deadline can expire while waiting between attempts.
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		if c.metrics != nil {
			c.metrics.RemoteErrorsTotal.WithLabelValues(r.service, "timeout").Inc()
		}
		return nil, &domain.RemoteError{Service: r.service, Err: fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)}
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, r *request, target string, timeout time.Duration) (*Response, error) {
	logger := zerolog.Ctx(ctx)

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", r.service, err)
	}
	req.Header = r.header.Clone()

	start := time.Now()
	res, err := c.http.Do(req)
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RemoteRequestDuration.WithLabelValues(r.service).Observe(elapsed.Seconds())
	}
	if err != nil {
		reason := "network"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
			err = fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
		}
		if c.metrics != nil {
			c.metrics.RemoteErrorsTotal.WithLabelValues(r.service, reason).Inc()
		}
		logger.Debug().Err(err).Str("service", r.service).Str("endpoint", r.redacted()).Msg("remote request failed")
		return nil, &domain.RemoteError{Service: r.service, Err: err}
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, &domain.RemoteError{
			Service:    r.service,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if c.metrics != nil {
		c.metrics.RemoteRequestsTotal.WithLabelValues(r.service, r.method, strconv.Itoa(res.StatusCode)).Inc()
	}
	logger.Debug().
		Str("service", r.service).
		Str("method", r.method).
		Str("endpoint", r.redacted()).
		Int("status", res.StatusCode).
		Dur("elapsed", elapsed).
		Msg("remote request")

	return &Response{StatusCode: res.StatusCode, Body: payload}, nil
}
