package adapters

import (
	"github.com/de-tools/analytics-bridge/pkg/models/api"
	"github.com/de-tools/analytics-bridge/pkg/models/domain"
)

// MapSeriesDomainToApi keeps a nil series nil so it encodes as null.
func MapSeriesDomainToApi(series domain.MetricSeries) []api.MetricPoint {
	if series == nil {
		return nil
	}
	points := make([]api.MetricPoint, 0, len(series))
	for _, p := range series {
		points = append(points, api.MetricPoint{Key: p.Key, Value: MapValueDomainToApi(p.Value)})
	}
	return points
}

func MapValueDomainToApi(value any) any {
	switch v := value.(type) {
	case domain.QueryStats:
		return api.QueryStats{
			Impressions: v.Impressions,
			Clicks:      v.Clicks,
			CTR:         v.CTR,
			Position:    v.Position,
		}
	case domain.Vital:
		return MapVitalDomainToApi(v)
	default:
		return v
	}
}

func MapReportDomainToApi(report domain.Report) api.Report {
	if report == nil {
		return nil
	}
	out := make(api.Report, len(report))
	for section, series := range report {
		out[section] = MapSeriesDomainToApi(series)
	}
	return out
}

func MapVitalDomainToApi(v domain.Vital) api.Vital {
	return api.Vital{Value: v.Value, Category: v.Category}
}

func MapVitalsDomainToApi(vitals domain.Vitals) map[string]api.Vital {
	if vitals == nil {
		return nil
	}
	out := make(map[string]api.Vital, len(vitals))
	for key, v := range vitals {
		out[key] = MapVitalDomainToApi(v)
	}
	return out
}

func MapTimePeriodDomainToApi(p domain.TimePeriod) api.TimePeriod {
	return api.TimePeriod{
		Start:    p.Start,
		End:      p.End,
		Duration: p.Duration,
	}
}

func MapOverviewDomainToApi(o *domain.Overview) api.Overview {
	out := api.Overview{
		URL:    o.URL,
		Period: MapTimePeriodDomainToApi(o.Period),
		Report: MapReportDomainToApi(o.Report),
	}
	if len(o.Errors) > 0 {
		out.Errors = make(map[string]string, len(o.Errors))
		for section, err := range o.Errors {
			out.Errors[section] = err.Error()
		}
	}
	return out
}
