package pagespeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loadingExperience = `{
  "loadingExperience": {
    "id": "https://example.com/",
    "metrics": {
      "FIRST_CONTENTFUL_PAINT_MS": {"percentile": 1200, "category": "FAST"},
      "LARGEST_CONTENTFUL_PAINT_MS": {"percentile": 2600, "category": "AVERAGE"},
      "CUMULATIVE_LAYOUT_SHIFT_SCORE": {"percentile": 5, "category": "FAST"},
      "EXPERIMENTAL_TIME_TO_FIRST_BYTE": {"percentile": 900, "category": "AVERAGE"}
    },
    "overall_category": "AVERAGE"
  }
}`

func newServer(t *testing.T, body string, got *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			*got = r.URL.Query()
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func ptr[T any](v T) *T {
	return &v
}

func TestClient_LabData_FiveFixedKeys(t *testing.T) {
	// Given
	var params url.Values
	srv := newServer(t, loadingExperience, &params)
	client, err := NewClient(analytics.Options{"apikey": "secret", "endpoint": srv.URL}, transport.New())
	require.NoError(t, err)

	// When
	vitals, err := client.LabData(context.Background(), "https://example.com/")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "secret", params.Get("key"))
	assert.Equal(t, "https://example.com/", params.Get("url"))
	assert.Equal(t, "mobile", params.Get("strategy"))
	assert.Equal(t, "loadingExperience", params.Get("fields"))

	assert.Equal(t, domain.Vitals{
		domain.VitalTTFB: {Value: ptr(900.0), Category: ptr("AVERAGE")},
		domain.VitalFCP:  {Value: ptr(1200.0), Category: ptr("FAST")},
		domain.VitalLCP:  {Value: ptr(2600.0), Category: ptr("AVERAGE")},
		domain.VitalFID:  {},
		domain.VitalCLS:  {Value: ptr(5.0), Category: ptr("FAST")},
	}, vitals)
}

func TestClient_LabData_WithoutLoadingExperience_ReturnsNil(t *testing.T) {
	srv := newServer(t, `{"id": "https://example.com/", "loadingExperience": {"initial_url": "https://example.com/"}}`, nil)
	client, err := NewClient(analytics.Options{"endpoint": srv.URL}, transport.New())
	require.NoError(t, err)

	vitals, err := client.LabData(context.Background(), "https://example.com/")

	require.NoError(t, err)
	assert.Nil(t, vitals)
}

func TestClient_LabData_OmitsKeyWhenNotConfigured(t *testing.T) {
	var params url.Values
	srv := newServer(t, loadingExperience, &params)
	client, err := NewClient(analytics.Options{"endpoint": srv.URL}, transport.New())
	require.NoError(t, err)

	_, err = client.LabData(context.Background(), "https://example.com/")

	require.NoError(t, err)
	assert.False(t, params.Has("key"))
}

func TestClient_LabData_FailureStatus_ShouldReturnRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()
	client, err := NewClient(analytics.Options{"endpoint": srv.URL}, transport.New())
	require.NoError(t, err)

	_, err = client.LabData(context.Background(), "https://example.com/")

	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "quota exceeded", remote.Body)
}

func TestClient_Stats_PerformanceSeriesInFixedOrder(t *testing.T) {
	srv := newServer(t, loadingExperience, nil)
	client, err := NewClient(analytics.Options{"endpoint": srv.URL}, transport.New())
	require.NoError(t, err)

	report, err := client.Stats(context.Background(), analytics.Query{Target: "https://example.com/"})

	require.NoError(t, err)
	series := report[domain.MetricPerformance]
	require.Len(t, series, 5)
	for i, key := range domain.VitalKeys {
		assert.Equal(t, key, series[i].Key)
	}
}
