package searchconsole

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/transport"
	"github.com/rs/zerolog"
	gsc "google.golang.org/api/searchconsole/v1"
)

const (
	Name            = "gsc"
	MaxQueryRows    = 100
	DefaultLanguage = "en"
	dateLayout      = "2006-01-02"
)

type Config struct {
	Auth    map[string]any `mapstructure:"auth"`
	Timeout time.Duration  `mapstructure:"timeout"`
}

// Driver reports Search Console data for a single page. Without credentials it is disabled.
type Driver struct {
	cfg  Config
	auth Authenticator
	now  func() time.Time

	mu     sync.Mutex
	client Client
}

func Factory(auth Authenticator) analytics.Factory {
	return func(_ context.Context, opts analytics.Options) (analytics.Driver, error) {
		return NewDriver(opts, auth)
	}
}

func NewDriver(opts analytics.Options, auth Authenticator) (*Driver, error) {
	opts = analytics.Merge(opts, nil)
	if raw, ok := opts["auth"].(string); ok {
		creds, err := DecodeCredentials(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse gsc auth: %w", err)
		}
		opts["auth"] = creds
	}

	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gsc config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = transport.DefaultTimeout
	}
	return &Driver{cfg: cfg, auth: auth, now: time.Now}, nil
}

// Enabled reports whether service account credentials are configured.
func (d *Driver) Enabled() bool {
	return len(d.cfg.Auth) > 0
}

func (d *Driver) SupportedMetrics() []string {
	return []string{domain.MetricImpressions, domain.MetricClicks, domain.MetricCTR}
}

func (d *Driver) Stats(ctx context.Context, q analytics.Query) (domain.Report, error) {
	q, err := q.Validate()
	if err != nil {
		return nil, err
	}

	series, err := d.TimeSeries(ctx, q.Target, q.Days)
	if err != nil || series == nil {
		return nil, err
	}

	report := q.NewReport(d.SupportedMetrics())
	for _, m := range q.Select(d.SupportedMetrics()) {
		report[m] = series[m]
	}
	return report, nil
}

// TimeSeries returns impressions, clicks and click-through rate of the page per day.
func (d *Driver) TimeSeries(ctx context.Context, target string, days int) (domain.Report, error) {
	site, days, err := validate(target, days)
	if err != nil {
		return nil, err
	}
	client, err := d.connect(ctx)
	if err != nil || client == nil {
		return nil, err
	}

	resp, err := d.query(ctx, client, site, &gsc.SearchAnalyticsQueryRequest{
		StartDate:             d.now().AddDate(0, 0, -(days - 1)).Format(dateLayout),
		EndDate:               d.now().Format(dateLayout),
		Dimensions:            []string{"date"},
		DimensionFilterGroups: pageFilter(target),
	})
	if err != nil {
		return nil, err
	}

	report := domain.Report{
		domain.MetricImpressions: make(domain.MetricSeries, 0, len(resp.Rows)),
		domain.MetricClicks:      make(domain.MetricSeries, 0, len(resp.Rows)),
		domain.MetricCTR:         make(domain.MetricSeries, 0, len(resp.Rows)),
	}
	for _, row := range resp.Rows {
		key := rowKey(row)
		report[domain.MetricImpressions] = append(report[domain.MetricImpressions], domain.MetricPoint{Key: key, Value: row.Impressions})
		report[domain.MetricClicks] = append(report[domain.MetricClicks], domain.MetricPoint{Key: key, Value: row.Clicks})
		report[domain.MetricCTR] = append(report[domain.MetricCTR], domain.MetricPoint{Key: key, Value: row.Ctr})
	}
	return report, nil
}

// TopQueries returns up to MaxQueryRows search queries leading to the page, in remote order.
func (d *Driver) TopQueries(ctx context.Context, target string, days int) (domain.MetricSeries, error) {
	site, days, err := validate(target, days)
	if err != nil {
		return nil, err
	}
	client, err := d.connect(ctx)
	if err != nil || client == nil {
		return nil, err
	}

	resp, err := d.query(ctx, client, site, &gsc.SearchAnalyticsQueryRequest{
		StartDate:             d.now().AddDate(0, 0, -(days - 1)).Format(dateLayout),
		EndDate:               d.now().Format(dateLayout),
		Dimensions:            []string{"query"},
		DimensionFilterGroups: pageFilter(target),
		RowLimit:              MaxQueryRows,
	})
	if err != nil {
		return nil, err
	}

	rows := resp.Rows
	if len(rows) > MaxQueryRows {
		rows = rows[:MaxQueryRows]
	}
	series := make(domain.MetricSeries, 0, len(rows))
	for _, row := range rows {
		series = append(series, domain.MetricPoint{
			Key: rowKey(row),
			Value: domain.QueryStats{
				Impressions: row.Impressions,
				Clicks:      row.Clicks,
				CTR:         row.Ctr,
				Position:    row.Position,
			},
		})
	}
	return series, nil
}

// IndexCoverage returns the coverage state of the URL, or "" when not configured.
func (d *Driver) IndexCoverage(ctx context.Context, target, lang string) (string, error) {
	site, _, err := validate(target, analytics.DefaultDays)
	if err != nil {
		return "", err
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	client, err := d.connect(ctx)
	if err != nil || client == nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := client.Inspect(ctx, &gsc.InspectUrlIndexRequest{
		InspectionUrl: target,
		SiteUrl:       site,
		LanguageCode:  lang,
	})
	if err != nil {
		return "", remoteError(err, d.cfg.Timeout)
	}
	if resp == nil || resp.InspectionResult == nil || resp.InspectionResult.IndexStatusResult == nil {
		return "", nil
	}
	return resp.InspectionResult.IndexStatusResult.CoverageState, nil
}

// SiteURL returns the property identifier of a page: scheme, host and port followed by a slash.
func SiteURL(target string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", domain.InvalidInputf("malformed url %q", target)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", domain.InvalidInputf("url %q must be absolute", target)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}

func (d *Driver) connect(ctx context.Context) (Client, error) {
	if !d.Enabled() {
		zerolog.Ctx(ctx).Debug().Msg("gsc credentials not configured, skipping search console")
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		client, err := d.auth(ctx, d.cfg.Auth, Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to authenticate search console client: %w", err)
		}
		d.client = client
	}
	return d.client, nil
}

func (d *Driver) query(
	ctx context.Context,
	client Client,
	site string,
	req *gsc.SearchAnalyticsQueryRequest,
) (*gsc.SearchAnalyticsQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := client.Query(ctx, site, req)
	if err != nil {
		return nil, remoteError(err, d.cfg.Timeout)
	}
	if resp == nil {
		return &gsc.SearchAnalyticsQueryResponse{}, nil
	}
	return resp, nil
}

func validate(target string, days int) (string, int, error) {
	q, err := analytics.Query{Target: target, Days: days}.Validate()
	if err != nil {
		return "", 0, err
	}
	site, err := SiteURL(q.Target)
	if err != nil {
		return "", 0, err
	}
	return site, q.Days, nil
}

func pageFilter(target string) []*gsc.ApiDimensionFilterGroup {
	return []*gsc.ApiDimensionFilterGroup{{
		Filters: []*gsc.ApiDimensionFilter{{
			Dimension:  "page",
			Operator:   "equals",
			Expression: target,
		}},
	}}
}

func rowKey(row *gsc.ApiDataRow) string {
	if len(row.Keys) == 0 {
		return ""
	}
	return row.Keys[0]
}
