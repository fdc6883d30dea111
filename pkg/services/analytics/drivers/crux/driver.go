package crux

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/transport"
	"github.com/rs/zerolog"
)

const (
	Name            = "crux"
	DefaultEndpoint = "https://chromeuxreport.googleapis.com/v1/records:queryRecord"

	experimentalPrefix = "experimental_"
)

type Config struct {
	APIKey     string        `mapstructure:"apikey"`
	FormFactor string        `mapstructure:"formFactor"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Client queries the Chrome UX Report for field data. Without an API key it is disabled.
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
		return nil, fmt.Errorf("failed to parse crux config: %w", err)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &Client{cfg: cfg, transport: tr}, nil
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

func (c *Client) SupportedMetrics() []string {
	return []string{domain.MetricPerformance}
}

func (c *Client) Stats(ctx context.Context, q analytics.Query) (domain.Report, error) {
	q, err := q.Validate()
	if err != nil {
		return nil, err
	}
	if !c.Enabled() {
		return nil, nil
	}

	report := q.NewReport(c.SupportedMetrics())
	if len(q.Select(c.SupportedMetrics())) == 0 {
		return report, nil
	}

	series, err := c.FieldData(ctx, q.Target)
	if err != nil {
		return nil, err
	}
	report[domain.MetricPerformance] = series
	return report, nil
}

// FieldData returns the 75th percentile of every metric the record carries, keyed by metric name.
func (c *Client) FieldData(ctx context.Context, target string) (domain.MetricSeries, error) {
	if strings.TrimSpace(target) == "" {
		return nil, domain.InvalidInputf("url must be a non-empty string")
	}
	if !c.Enabled() {
		zerolog.Ctx(ctx).Debug().Msg("crux api key not configured, skipping field data")
		return nil, nil
	}

	payload := map[string]string{"url": target}
	if c.cfg.FormFactor != "" {
		payload["formFactor"] = c.cfg.FormFactor
	}

	resp, err := c.transport.Post(ctx, c.cfg.Endpoint, payload,
		transport.WithService(Name),
		transport.WithQuery(url.Values{"key": {c.cfg.APIKey}}),
		transport.WithTimeout(c.cfg.Timeout),
	)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &domain.RemoteError{Service: Name, StatusCode: resp.StatusCode, Body: resp.String()}
	}

	series, err := parseRecord(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Service: Name, StatusCode: resp.StatusCode, Body: resp.String(), Err: err}
	}
	return series, nil
}

func parseRecord(body []byte) (domain.MetricSeries, error) {
	var payload struct {
		Record struct {
			Metrics json.RawMessage `json:"metrics"`
		} `json:"record"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode crux record: %w", err)
	}
	if len(payload.Record.Metrics) == 0 {
		return domain.MetricSeries{}, nil
	}

	entries, err := analytics.ObjectEntries(payload.Record.Metrics)
	if err != nil {
		return nil, err
	}

	series := make(domain.MetricSeries, 0, len(entries))
	for _, e := range entries {
		var metric struct {
			Percentiles map[string]any `json:"percentiles"`
		}
		if err := json.Unmarshal(e.Value, &metric); err != nil {
			return nil, fmt.Errorf("failed to decode metric %s: %w", e.Key, err)
		}
		series = append(series, domain.MetricPoint{
			Key:   MetricKey(e.Key),
			Value: metric.Percentiles["p75"],
		})
	}
	return series, nil
}

// MetricKey strips the experimental marker CrUX puts in front of metrics under evaluation.
func MetricKey(name string) string {
	return strings.TrimPrefix(name, experimentalPrefix)
}
