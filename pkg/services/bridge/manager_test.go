package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/observability"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/searchconsole"
	"github.com/de-tools/analytics-bridge/pkg/services/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	gsc "google.golang.org/api/searchconsole/v1"
)

var trafficMetrics = []string{
	domain.MetricPageViews,
	domain.MetricVisits,
	domain.MetricVisitDuration,
	domain.MetricCountries,
	domain.MetricReferrers,
}

// fakeDriver answers every supported metric with a single point keyed by the target.
type fakeDriver struct {
	opts    analytics.Options
	failing map[string]error

	mu      sync.Mutex
	queries []analytics.Query
}

func (f *fakeDriver) SupportedMetrics() []string {
	return trafficMetrics
}

func (f *fakeDriver) Stats(_ context.Context, q analytics.Query) (domain.Report, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	report := q.NewReport(f.SupportedMetrics())
	for _, m := range q.Select(f.SupportedMetrics()) {
		if err := f.failing[m]; err != nil {
			return nil, err
		}
		report[m] = domain.MetricSeries{{Key: q.Target, Value: float64(q.Days)}}
	}
	return report, nil
}

type countingFactory struct {
	calls  atomic.Int32
	driver *fakeDriver
}

func (c *countingFactory) create(_ context.Context, opts analytics.Options) (analytics.Driver, error) {
	c.calls.Add(1)
	c.driver.opts = opts
	return c.driver, nil
}

func newRegistry(t *testing.T, factory *countingFactory) analytics.Registry {
	t.Helper()
	r := analytics.NewRegistry()
	require.NoError(t, r.Register("fake", factory.create))
	require.NoError(t, r.Register("other", factory.create))
	return r
}

func newCruxServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"record":{"metrics":{"largest_contentful_paint":{"percentiles":{"p75":2100}}}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_Driver_ResolvesOnce(t *testing.T) {
	// Given
	factory := &countingFactory{driver: &fakeDriver{}}
	m := NewManager(Dependencies{
		Source: config.NewMapSource(map[string]any{
			"default": "fake",
			"drivers": map[string]any{"fake": map[string]any{"siteid": "1", "token": "config"}},
		}),
		Registry: newRegistry(t, factory),
	})
	ctx := context.Background()

	// When
	first, err := m.Driver(ctx, "", analytics.Options{"Token": "override"})
	require.NoError(t, err)
	second, err := m.Driver(ctx, "other", nil)
	require.NoError(t, err)

	// Then
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), factory.calls.Load())
	assert.Equal(t, analytics.Options{"siteid": "1", "token": "override"}, factory.driver.opts)
}

func TestManager_Driver_ConcurrentResolutionCreatesOnce(t *testing.T) {
	factory := &countingFactory{driver: &fakeDriver{}}
	m := NewManager(Dependencies{
		Source:   config.NewMapSource(map[string]any{"default": "fake"}),
		Registry: newRegistry(t, factory),
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Driver(context.Background(), "", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), factory.calls.Load())
}

func TestManager_Driver_Unknown_ShouldError(t *testing.T) {
	// Given
	m := NewManager(Dependencies{
		Source:   config.NewMapSource(map[string]any{"default": "piwik"}),
		Registry: newRegistry(t, &countingFactory{driver: &fakeDriver{}}),
	})

	// When
	_, err := m.Driver(context.Background(), "", nil)

	// Then
	assert.ErrorIs(t, err, domain.ErrUnknownDriver)

	// a failed resolution is not cached
	d, err := m.Driver(context.Background(), "fake", nil)
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestManager_CategoryOperations(t *testing.T) {
	driver := &fakeDriver{}
	m := NewManager(Dependencies{
		Source:   config.NewMapSource(map[string]any{"default": "fake"}),
		Registry: newRegistry(t, &countingFactory{driver: driver}),
	})
	ctx := context.Background()

	tests := []struct {
		metric string
		fetch  func(context.Context, string, int) (domain.MetricSeries, error)
	}{
		{metric: domain.MetricPageViews, fetch: m.PageViews},
		{metric: domain.MetricVisits, fetch: m.Visits},
		{metric: domain.MetricVisitDuration, fetch: m.VisitDurations},
		{metric: domain.MetricCountries, fetch: m.Countries},
		{metric: domain.MetricReferrers, fetch: m.Referrers},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			series, err := tt.fetch(ctx, "/blog", 7)

			require.NoError(t, err)
			assert.Equal(t, domain.MetricSeries{{Key: "/blog", Value: float64(7)}}, series)
			last := driver.queries[len(driver.queries)-1]
			assert.Equal(t, []string{tt.metric}, last.Metrics)
		})
	}
}

func TestManager_Stats_InvalidInputBeforeResolution(t *testing.T) {
	factory := &countingFactory{driver: &fakeDriver{}}
	m := NewManager(Dependencies{
		Source:   config.NewMapSource(map[string]any{"default": "fake"}),
		Registry: newRegistry(t, factory),
	})

	_, err := m.Stats(context.Background(), "", 7)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, factory.calls.Load())
}

func TestManager_All_EverythingConfigured(t *testing.T) {
	// Given
	var cruxCalls atomic.Int32
	srv := newCruxServer(t, &cruxCalls)
	driver := &fakeDriver{}
	m := NewManager(Dependencies{
		Source: config.NewMapSource(map[string]any{
			"default": "fake",
			"crux":    map[string]any{"apikey": "k", "endpoint": srv.URL},
		}),
		Registry: newRegistry(t, &countingFactory{driver: driver}),
	})

	// When
	overview, err := m.All(context.Background(), "https://example.com/blog/post-1?ref=x", 14)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blog/post-1?ref=x", overview.URL)
	assert.Equal(t, 14, overview.Period.Duration)
	assert.Empty(t, overview.Errors)
	require.Len(t, overview.Report, len(domain.OverviewSections))
	for _, section := range domain.OverviewSections {
		assert.NotNil(t, overview.Report[section], section)
	}
	assert.Equal(t, domain.MetricSeries{{Key: "/blog/post-1?ref=x", Value: float64(14)}}, overview.Report[domain.MetricVisits])
	assert.Equal(t, domain.MetricSeries{{Key: "largest_contentful_paint", Value: float64(2100)}}, overview.Report[domain.MetricPerformance])
	assert.Len(t, driver.queries, 5)
	assert.Equal(t, int32(1), cruxCalls.Load())
}

func TestManager_All_EmptyURL_NoRemoteCalls(t *testing.T) {
	var cruxCalls atomic.Int32
	srv := newCruxServer(t, &cruxCalls)
	factory := &countingFactory{driver: &fakeDriver{}}
	m := NewManager(Dependencies{
		Source: config.NewMapSource(map[string]any{
			"default": "fake",
			"crux":    map[string]any{"apikey": "k", "endpoint": srv.URL},
		}),
		Registry: newRegistry(t, factory),
	})

	overview, err := m.All(context.Background(), "", 0)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, overview)
	assert.Zero(t, factory.calls.Load())
	assert.Zero(t, cruxCalls.Load())
}

func TestManager_All_DegradesFailingSections(t *testing.T) {
	// Given
	boom := &domain.RemoteError{Service: "fake", StatusCode: http.StatusBadGateway, Body: "upstream down"}
	driver := &fakeDriver{failing: map[string]error{domain.MetricCountries: boom}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := NewManager(Dependencies{
		Source:   config.NewMapSource(map[string]any{"default": "fake"}),
		Registry: newRegistry(t, &countingFactory{driver: driver}),
		Metrics:  metrics,
	})

	// When
	overview, err := m.All(context.Background(), "/blog", 0)

	// Then
	require.NoError(t, err)
	assert.Equal(t, 30, overview.Period.Duration)
	assert.Contains(t, overview.Report, domain.MetricCountries)
	assert.Nil(t, overview.Report[domain.MetricCountries])
	assert.True(t, errors.Is(overview.Errors[domain.MetricCountries], boom))
	assert.NotNil(t, overview.Report[domain.MetricVisits])
	assert.Contains(t, overview.Report, domain.MetricPerformance)
	assert.Nil(t, overview.Report[domain.MetricPerformance], "crux is not configured")
	assert.NotContains(t, overview.Errors, domain.MetricPerformance)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DegradedSectionsTotal.WithLabelValues(domain.MetricCountries)))
}

func TestManager_PagespeedFieldData_WithoutKey_ReturnsNil(t *testing.T) {
	m := NewManager(Dependencies{})

	series, err := m.PagespeedFieldData(context.Background(), "https://example.com/", nil)

	require.NoError(t, err)
	assert.Nil(t, series)
}

func TestManager_PagespeedFieldData_OverrideWins(t *testing.T) {
	var cruxCalls atomic.Int32
	srv := newCruxServer(t, &cruxCalls)
	m := NewManager(Dependencies{
		Source: config.NewMapSource(map[string]any{
			"crux": map[string]any{"apikey": "k", "endpoint": "http://127.0.0.1:1/unreachable"},
		}),
	})

	series, err := m.PagespeedFieldData(context.Background(), "https://example.com/", analytics.Options{"endpoint": srv.URL})

	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, int32(1), cruxCalls.Load())
}

func TestManager_SearchConsole_Unconfigured_NeverAuthenticates(t *testing.T) {
	// Given
	var authCalls atomic.Int32
	m := NewManager(Dependencies{
		Authenticator: func(context.Context, map[string]any, string) (searchconsole.Client, error) {
			authCalls.Add(1)
			return nil, errors.New("unexpected authentication")
		},
	})
	ctx := context.Background()

	// When
	series, seriesErr := m.SearchConsoleTimeSeries(ctx, "https://example.com/blog", 7, nil)
	queries, queriesErr := m.SearchConsoleTopQueries(ctx, "https://example.com/blog", 7, nil)
	state, stateErr := m.IndexCoverage(ctx, "https://example.com/blog", "", nil)

	// Then
	require.NoError(t, errors.Join(seriesErr, queriesErr, stateErr))
	assert.Nil(t, series)
	assert.Nil(t, queries)
	assert.Empty(t, state)
	assert.Zero(t, authCalls.Load())
}

type fakeSearchClient struct {
	err error
}

func (f *fakeSearchClient) Query(context.Context, string, *gsc.SearchAnalyticsQueryRequest) (*gsc.SearchAnalyticsQueryResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gsc.SearchAnalyticsQueryResponse{Rows: []*gsc.ApiDataRow{{Keys: []string{"2024-05-30"}, Clicks: 1}}}, nil
}

func (f *fakeSearchClient) Inspect(context.Context, *gsc.InspectUrlIndexRequest) (*gsc.InspectUrlIndexResponse, error) {
	return nil, f.err
}

func newSearchConsoleManager(client searchconsole.Client, calls *atomic.Int32) *Manager {
	return NewManager(Dependencies{
		Source: config.NewMapSource(map[string]any{
			"gsc": map[string]any{"auth": map[string]any{"type": "service_account"}},
		}),
		Authenticator: func(context.Context, map[string]any, string) (searchconsole.Client, error) {
			calls.Add(1)
			return client, nil
		},
	})
}

func TestManager_SearchConsole_AuthenticatesOnce(t *testing.T) {
	// Given
	var authCalls atomic.Int32
	m := newSearchConsoleManager(&fakeSearchClient{}, &authCalls)
	ctx := context.Background()

	// When
	first, firstErr := m.SearchConsoleTimeSeries(ctx, "https://example.com/blog", 7, nil)
	second, secondErr := m.SearchConsoleTimeSeries(ctx, "https://example.com/blog", 7, nil)
	_, queriesErr := m.SearchConsoleTopQueries(ctx, "https://example.com/blog", 7, nil)

	// Then
	require.NoError(t, errors.Join(firstErr, secondErr, queriesErr))
	assert.Len(t, first[domain.MetricClicks], 1)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), authCalls.Load())
}

func TestManager_SearchConsoleTimeSeries_RemoteFailure(t *testing.T) {
	// Given
	var authCalls atomic.Int32
	m := newSearchConsoleManager(&fakeSearchClient{err: &googleapi.Error{
		Code:    http.StatusForbidden,
		Message: "User does not have sufficient permission",
		Body:    `{"error":{"code":403,"message":"User does not have sufficient permission"}}`,
	}}, &authCalls)

	// When
	report, err := m.SearchConsoleTimeSeries(context.Background(), "https://example.com/blog", 7, nil)

	// Then
	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, searchconsole.Name, remote.Service)
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
	assert.Contains(t, remote.Body, "sufficient permission")
	assert.Nil(t, report)
}

func TestPagePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://example.com/blog/post-1?utm=x", want: "/blog/post-1?utm=x"},
		{in: "https://example.com", want: "/"},
		{in: "/product/1", want: "/product/1"},
		{in: "product/1", want: "/product/1"},
		{in: "https://example.com/a%20b", want: "/a%20b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PagePath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
