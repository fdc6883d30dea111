package transport

import (
	"net/http"
	"net/url"
	"time"
)

type request struct {
	method   string
	endpoint string
	service  string
	timeout  time.Duration
	header   http.Header
	params   url.Values
	body     []byte
}

type RequestOption func(*request)

// WithService labels the request in logs and metrics.
func WithService(name string) RequestOption {
	return func(r *request) {
		r.service = name
	}
}

// WithTimeout overrides the client timeout for a single request.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *request) {
		r.timeout = d
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithBearerToken sets the Authorization header.
func WithBearerToken(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithQuery adds query parameters, mostly useful for POST requests.
func WithQuery(params url.Values) RequestOption {
	return func(r *request) {
		if r.params == nil {
			r.params = url.Values{}
		}
		for k, vs := range params {
			for _, v := range vs {
				r.params.Add(k, v)
			}
		}
	}
}

func newRequest(method, endpoint string, opts []RequestOption) *request {
	r := &request{
		method:   method,
		endpoint: endpoint,
		service:  "remote",
		header:   http.Header{"Accept": []string{"application/json"}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *request) url() (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &url.Error{Op: "parse", URL: r.endpoint, Err: url.InvalidHostError(u.Host)}
	}
	if len(r.params) > 0 {
		q := u.Query()
		for k, vs := range r.params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redacted drops the query string, which may carry API keys.
func (r *request) redacted() string {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return r.service
	}
	return u.Scheme + "://" + u.Host + u.Path
}
