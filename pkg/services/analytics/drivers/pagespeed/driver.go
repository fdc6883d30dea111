package pagespeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/transport"
)

const (
	Name            = "pagespeed"
	DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultStrategy = "mobile"
)

// remoteMetrics maps vital keys to loading experience metric names.
var remoteMetrics = map[string]string{
	domain.VitalTTFB: "EXPERIMENTAL_TIME_TO_FIRST_BYTE",
	domain.VitalFCP:  "FIRST_CONTENTFUL_PAINT_MS",
	domain.VitalLCP:  "LARGEST_CONTENTFUL_PAINT_MS",
	domain.VitalFID:  "FIRST_INPUT_DELAY_MS",
	domain.VitalCLS:  "CUMULATIVE_LAYOUT_SHIFT_SCORE",
}

type Config struct {
	APIKey   string        `mapstructure:"apikey"`
	Strategy string        `mapstructure:"strategy"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Client reads the loading experience section of PageSpeed Insights.
// The API key is optional for the public endpoint.
type Client struct {
	cfg       Config
	transport transport.Transport
}

func Factory(tr transport.Transport) analytics.Factory {
	return func(_ context.Context, opts analytics.Options) (analytics.Driver, error) {
		return NewClient(opts, tr)
	}
}

func NewClient(opts analytics.Options, tr transport.Transport) (*Client, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pagespeed config: %w", err)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Strategy == "" {
		cfg.Strategy = DefaultStrategy
	}
	return &Client{cfg: cfg, transport: tr}, nil
}

func (c *Client) SupportedMetrics() []string {
	return []string{domain.MetricPerformance}
}

// Stats exposes the vitals as a performance series in the order of domain.VitalKeys.
func (c *Client) Stats(ctx context.Context, q analytics.Query) (domain.Report, error) {
	q, err := q.Validate()
	if err != nil {
		return nil, err
	}

	report := q.NewReport(c.SupportedMetrics())
	if len(q.Select(c.SupportedMetrics())) == 0 {
		return report, nil
	}

	vitals, err := c.LabData(ctx, q.Target)
	if err != nil {
		return nil, err
	}
	if vitals == nil {
		return report, nil
	}

	series := make(domain.MetricSeries, 0, len(domain.VitalKeys))
	for _, key := range domain.VitalKeys {
		series = append(series, domain.MetricPoint{Key: key, Value: vitals[key]})
	}
	report[domain.MetricPerformance] = series
	return report, nil
}

// LabData returns the five loading experience vitals, or nil when the page lacks real-user data.
func (c *Client) LabData(ctx context.Context, target string) (domain.Vitals, error) {
	if strings.TrimSpace(target) == "" {
		return nil, domain.InvalidInputf("url must be a non-empty string")
	}

	params := url.Values{
		"url":      {target},
		"strategy": {c.cfg.Strategy},
		"fields":   {"loadingExperience"},
	}
	if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
	}

	resp, err := c.transport.Get(ctx, c.cfg.Endpoint, params,
		transport.WithService(Name),
		transport.WithTimeout(c.cfg.Timeout),
	)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &domain.RemoteError{Service: Name, StatusCode: resp.StatusCode, Body: resp.String()}
	}

	var payload struct {
		LoadingExperience struct {
			Metrics map[string]struct {
				Percentile *float64 `json:"percentile"`
				Category   *string  `json:"category"`
			} `json:"metrics"`
		} `json:"loadingExperience"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, &domain.RemoteError{Service: Name, StatusCode: resp.StatusCode, Body: resp.String(), Err: err}
	}
	if payload.LoadingExperience.Metrics == nil {
		return nil, nil
	}

	vitals := make(domain.Vitals, len(remoteMetrics))
	for key, remote := range remoteMetrics {
		m, ok := payload.LoadingExperience.Metrics[remote]
		if !ok {
			vitals[key] = domain.Vital{}
			continue
		}
		vitals[key] = domain.Vital{Value: m.Percentile, Category: m.Category}
	}
	return vitals, nil
}
