package searchconsole

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsc "google.golang.org/api/searchconsole/v1"
)

const Scope = gsc.WebmastersReadonlyScope

// Client issues the Search Console calls the driver needs.
type Client interface {
	Query(ctx context.Context, siteURL string, req *gsc.SearchAnalyticsQueryRequest) (*gsc.SearchAnalyticsQueryResponse, error)
	Inspect(ctx context.Context, req *gsc.InspectUrlIndexRequest) (*gsc.InspectUrlIndexResponse, error)
}

// Authenticator turns a decoded service account credential into an authenticated Client.
type Authenticator func(ctx context.Context, credentials map[string]any, scope string) (Client, error)

// NewAuthenticator authenticates with a service account JWT. base is used for the
// token exchange and as the transport under the oauth2 client; nil means http.DefaultClient.
func NewAuthenticator(base *http.Client) Authenticator {
	return func(ctx context.Context, credentials map[string]any, scope string) (Client, error) {
		data, err := json.Marshal(credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to encode service account credentials: %w", err)
		}
		conf, err := google.JWTConfigFromJSON(data, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
		}

		// the token source outlives the call that created it
		tokenCtx := context.WithoutCancel(ctx)
		if base != nil {
			tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, base)
		}
		return NewServiceClient(ctx, option.WithHTTPClient(conf.Client(tokenCtx)))
	}
}

// NewServiceClient wraps the generated Search Console service.
func NewServiceClient(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	svc, err := gsc.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search console service: %w", err)
	}
	return &serviceClient{svc: svc}, nil
}

type serviceClient struct {
	svc *gsc.Service
}

func (c *serviceClient) Query(
	ctx context.Context,
	siteURL string,
	req *gsc.SearchAnalyticsQueryRequest,
) (*gsc.SearchAnalyticsQueryResponse, error) {
	return c.svc.Searchanalytics.Query(siteURL, req).Context(ctx).Do()
}

func (c *serviceClient) Inspect(ctx context.Context, req *gsc.InspectUrlIndexRequest) (*gsc.InspectUrlIndexResponse, error) {
	return c.svc.UrlInspection.Index.Inspect(req).Context(ctx).Do()
}

// DecodeCredentials accepts a base64 encoded or plain JSON service account key.
func DecodeCredentials(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	data := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 credentials: %w", err)
		}
		data = decoded
	}

	var creds map[string]any
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials json: %w", err)
	}
	return creds, nil
}

// remoteError converts API and deadline failures into the domain error taxonomy.
func remoteError(err error, timeout time.Duration) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &domain.RemoteError{Service: Name, StatusCode: apiErr.Code, Body: body, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
	}
	return &domain.RemoteError{Service: Name, Err: err}
}
