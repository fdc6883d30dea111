package matomo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/de-tools/analytics-bridge/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const Name = "matomo"

// report describes the remote report backing a metric type.
type report struct {
	method string
	period string
	dated  bool   // response is an object keyed by date
	key    string // row field used as point key when not dated
	value  string
}

var reports = map[string]report{
	domain.MetricPageViews:     {method: "Actions.get", period: "day", dated: true, value: "nb_pageviews"},
	domain.MetricVisits:        {method: "VisitsSummary.get", period: "day", dated: true, value: "nb_visits"},
	domain.MetricVisitDuration: {method: "VisitsSummary.get", period: "day", dated: true, value: "avg_time_on_site"},
	domain.MetricCountries:     {method: "UserCountry.getCountry", period: "range", key: "code", value: "nb_visits"},
	domain.MetricReferrers:     {method: "Referrers.getAll", period: "range", key: "label", value: "nb_visits"},
}

var supportedMetrics = []string{
	domain.MetricPageViews,
	domain.MetricVisits,
	domain.MetricVisitDuration,
	domain.MetricCountries,
	domain.MetricReferrers,
}

type driver struct {
	cfg       *Config
	transport transport.Transport
}

// Factory returns the analytics.Factory of the Matomo driver using tr for remote calls
func Factory(tr transport.Transport) analytics.Factory {
	return func(_ context.Context, opts analytics.Options) (analytics.Driver, error) {
		cfg, err := LoadConfig(opts)
		if err != nil {
			return nil, err
		}
		return NewDriver(cfg, tr), nil
	}
}

func NewDriver(cfg *Config, tr transport.Transport) analytics.Driver {
	return &driver{cfg: cfg, transport: tr}
}

func (d *driver) SupportedMetrics() []string {
	return supportedMetrics
}

func (d *driver) Stats(ctx context.Context, q analytics.Query) (domain.Report, error) {
	q, err := q.Validate()
	if err != nil {
		return nil, err
	}

	selected := q.Select(supportedMetrics)
	results := make([]domain.MetricSeries, len(selected))

	eg, ctx := errgroup.WithContext(ctx)
	for i, metric := range selected {
		eg.Go(func() error {
			series, err := d.fetch(ctx, reports[metric], q)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", metric, err)
			}
			results[i] = series
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := q.NewReport(supportedMetrics)
	for i, metric := range selected {
		out[metric] = results[i]
	}
	return out, nil
}

func (d *driver) fetch(ctx context.Context, r report, q analytics.Query) (domain.MetricSeries, error) {
	params := url.Values{
		"module": {"API"},
		"format": {"JSON"},
		"idSite": {d.cfg.SiteID},
		"method": {r.method},
		"period": {r.period},
		"date":   {"last" + strconv.Itoa(q.Days)},
	}
	if !r.dated {
		params.Set("filter_limit", "-1")
	}
	if segment := pageSegment(q.Target); segment != "" {
		params.Set("segment", segment)
	}

	resp, err := d.transport.Get(ctx, d.cfg.URL+"/index.php", params,
		transport.WithService(Name),
		transport.WithBearerToken(d.cfg.Token),
		transport.WithTimeout(d.cfg.Timeout),
	)
	if err != nil {
		return nil, err
	}
	if !resp.OK() || isErrorPayload(resp.Body) {
		return nil, &domain.RemoteError{Service: Name, StatusCode: resp.StatusCode, Body: resp.String()}
	}

	zerolog.Ctx(ctx).Debug().
		Str("method", r.method).
		Str("target", q.Target).
		Int("days", q.Days).
		Msg("matomo report received")

	var series domain.MetricSeries
	if r.dated {
		series, err = parseDated(resp.Body, r.value)
	} else {
		series, err = parseRows(resp.Body, r.key, r.value)
	}
	if err != nil {
		return nil, &domain.RemoteError{Service: Name, StatusCode: resp.StatusCode, Body: resp.String(), Err: err}
	}
	return series, nil
}

// pageSegment restricts a report to page URLs containing the target path.
func pageSegment(target string) string {
	if target == "" || target == "/" {
		return ""
	}
	return "pageUrl=@" + url.QueryEscape(target)
}

func isErrorPayload(body []byte) bool {
	var payload struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Result == "error"
}
