package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/observability"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/crux"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/pagespeed"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics/drivers/searchconsole"
	"github.com/de-tools/analytics-bridge/pkg/services/config"
	"github.com/de-tools/analytics-bridge/pkg/transport"
	"github.com/rs/zerolog"
)

type Dependencies struct {
	Source        config.Source
	Registry      analytics.Registry
	Transport     transport.Transport
	Authenticator searchconsole.Authenticator
	Metrics       *observability.Metrics
}

// Manager is the single entry point for analytics. It resolves one driver on first
// use and keeps it for its whole lifetime.
type Manager struct {
	source    config.Source
	registry  analytics.Registry
	transport transport.Transport
	auth      searchconsole.Authenticator
	metrics   *observability.Metrics

	mu     sync.Mutex
	driver analytics.Driver

	gscMu sync.Mutex
	gsc   *searchconsole.Driver
}

func NewManager(deps Dependencies) *Manager {
	if deps.Source == nil {
		deps.Source = config.NewMapSource(nil)
	}
	if deps.Registry == nil {
		deps.Registry = analytics.NewRegistry()
	}
	if deps.Transport == nil {
		deps.Transport = transport.New()
	}
	if deps.Authenticator == nil {
		deps.Authenticator = searchconsole.NewAuthenticator(nil)
	}
	return &Manager{
		source:    deps.Source,
		registry:  deps.Registry,
		transport: deps.Transport,
		auth:      deps.Authenticator,
		metrics:   deps.Metrics,
	}
}

// Driver resolves the driver registered under name, or the configured default when name is empty.
// Once resolved, the same instance is returned regardless of the arguments.
func (m *Manager) Driver(ctx context.Context, name string, override analytics.Options) (analytics.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver != nil {
		return m.driver, nil
	}

	if name == "" {
		name = config.String(m.source, config.KeyDefaultDriver, config.DefaultDriver)
	}
	opts := analytics.Merge(config.Map(m.source, config.KeyDrivers+"."+name), override)

	driver, err := m.registry.Create(ctx, name, opts)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("driver", name).Msg("analytics driver resolved")
	m.driver = driver
	return driver, nil
}

// Drivers returns the names of the registered drivers.
func (m *Manager) Drivers() []string {
	return m.registry.ListDrivers()
}

// Stats forwards to the resolved driver.
func (m *Manager) Stats(ctx context.Context, target string, days int, metrics ...string) (domain.Report, error) {
	q, err := analytics.Query{Target: target, Days: days, Metrics: metrics}.Validate()
	if err != nil {
		return nil, err
	}
	driver, err := m.Driver(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	return driver.Stats(ctx, q)
}

func (m *Manager) PageViews(ctx context.Context, target string, days int) (domain.MetricSeries, error) {
	return m.section(ctx, domain.MetricPageViews, target, days)
}

func (m *Manager) Visits(ctx context.Context, target string, days int) (domain.MetricSeries, error) {
	return m.section(ctx, domain.MetricVisits, target, days)
}

func (m *Manager) VisitDurations(ctx context.Context, target string, days int) (domain.MetricSeries, error) {
	return m.section(ctx, domain.MetricVisitDuration, target, days)
}

func (m *Manager) Countries(ctx context.Context, target string, days int) (domain.MetricSeries, error) {
	return m.section(ctx, domain.MetricCountries, target, days)
}

func (m *Manager) Referrers(ctx context.Context, target string, days int) (domain.MetricSeries, error) {
	return m.section(ctx, domain.MetricReferrers, target, days)
}

func (m *Manager) section(ctx context.Context, metric, target string, days int) (domain.MetricSeries, error) {
	report, err := m.Stats(ctx, target, days, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", metric, err)
	}
	return report[metric], nil
}

// PagespeedFieldData returns CrUX percentiles, or nil when no API key is configured.
func (m *Manager) PagespeedFieldData(ctx context.Context, target string, override analytics.Options) (domain.MetricSeries, error) {
	if target == "" {
		return nil, domain.InvalidInputf("url must be a non-empty string")
	}
	client, err := crux.NewClient(analytics.Merge(config.Map(m.source, config.KeyCrux), override), m.transport)
	if err != nil {
		return nil, err
	}
	return client.FieldData(ctx, target)
}

// PagespeedLabData returns the PageSpeed loading experience, or nil without real-user data.
func (m *Manager) PagespeedLabData(ctx context.Context, target string, override analytics.Options) (domain.Vitals, error) {
	if target == "" {
		return nil, domain.InvalidInputf("url must be a non-empty string")
	}
	client, err := pagespeed.NewClient(analytics.Merge(config.Map(m.source, config.KeyPageSpeed), override), m.transport)
	if err != nil {
		return nil, err
	}
	return client.LabData(ctx, target)
}

// SearchConsoleTimeSeries returns impressions, clicks and ctr per day, or nil without credentials.
func (m *Manager) SearchConsoleTimeSeries(
	ctx context.Context,
	target string,
	days int,
	override analytics.Options,
) (domain.Report, error) {
	gsc, err := m.searchConsole(override)
	if err != nil {
		return nil, err
	}
	return gsc.TimeSeries(ctx, target, days)
}

// SearchConsoleTopQueries returns the top search queries of the page, or nil without credentials.
func (m *Manager) SearchConsoleTopQueries(
	ctx context.Context,
	target string,
	days int,
	override analytics.Options,
) (domain.MetricSeries, error) {
	gsc, err := m.searchConsole(override)
	if err != nil {
		return nil, err
	}
	return gsc.TopQueries(ctx, target, days)
}

// IndexCoverage returns the index coverage state of the URL, or "" without credentials.
func (m *Manager) IndexCoverage(ctx context.Context, target, lang string, override analytics.Options) (string, error) {
	gsc, err := m.searchConsole(override)
	if err != nil {
		return "", err
	}
	return gsc.IndexCoverage(ctx, target, lang)
}

// searchConsole keeps the configured driver so its authenticated client is reused.
// Overrides get a fresh driver each call.
func (m *Manager) searchConsole(override analytics.Options) (*searchconsole.Driver, error) {
	if len(override) > 0 {
		return searchconsole.NewDriver(analytics.Merge(config.Map(m.source, config.KeyGSC), override), m.auth)
	}

	m.gscMu.Lock()
	defer m.gscMu.Unlock()

	if m.gsc == nil {
		driver, err := searchconsole.NewDriver(config.Map(m.source, config.KeyGSC), m.auth)
		if err != nil {
			return nil, err
		}
		m.gsc = driver
	}
	return m.gsc, nil
}
