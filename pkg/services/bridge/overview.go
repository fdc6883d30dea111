package bridge

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// All fetches every overview section of the URL concurrently. A failing section is
// reported as nil with its error in Overview.Errors; only invalid input and driver
// resolution fail the whole call.
func (m *Manager) All(ctx context.Context, target string, days int) (*domain.Overview, error) {
	q, err := analytics.Query{Target: target, Days: days}.Validate()
	if err != nil {
		return nil, err
	}
	path, err := PagePath(q.Target)
	if err != nil {
		return nil, err
	}
	driver, err := m.Driver(ctx, "", nil)
	if err != nil {
		return nil, err
	}

	sections := domain.OverviewSections
	results := make([]domain.MetricSeries, len(sections))
	errs := make([]error, len(sections))

	var eg errgroup.Group
	for i, section := range sections {
		eg.Go(func() error {
			if section == domain.MetricPerformance {
				results[i], errs[i] = m.PagespeedFieldData(ctx, q.Target, nil)
				return nil
			}
			report, err := driver.Stats(ctx, analytics.Query{Target: path, Days: q.Days, Metrics: []string{section}})
			results[i], errs[i] = report[section], err
			return nil
		})
	}
	_ = eg.Wait()

	overview := &domain.Overview{
		URL:    q.Target,
		Period: domain.NewTimePeriod(time.Now(), q.Days),
		Report: make(domain.Report, len(sections)),
		Errors: make(map[string]error),
	}
	logger := zerolog.Ctx(ctx)
	for i, section := range sections {
		if errs[i] != nil {
			logger.Warn().Err(errs[i]).Str("section", section).Str("url", q.Target).Msg("overview section degraded")
			if m.metrics != nil {
				m.metrics.DegradedSectionsTotal.WithLabelValues(section).Inc()
			}
			overview.Errors[section] = errs[i]
			overview.Report[section] = nil
			continue
		}
		overview.Report[section] = results[i]
	}
	return overview, nil
}

// PagePath returns the path and query of a URL relative to the site root.
// Targets without a host are taken as paths already.
func PagePath(target string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", domain.InvalidInputf("malformed url %q", target)
	}

	path := u.EscapedPath()
	if u.Host == "" && u.Scheme == "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}
