package matomo

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
)

// parseDated reads {"2024-01-01": {...}, "2024-01-02": []} responses.
// Days without data are reported as 0.
func parseDated(body []byte, field string) (domain.MetricSeries, error) {
	entries, err := analytics.ObjectEntries(body)
	if err != nil {
		return nil, err
	}

	series := make(domain.MetricSeries, 0, len(entries))
	for _, e := range entries {
		var row map[string]any
		if err := json.Unmarshal(e.Value, &row); err != nil {
			// empty days are encoded as []
			var empty []any
			if json.Unmarshal(e.Value, &empty) != nil {
				return nil, fmt.Errorf("unexpected value for %s: %s", e.Key, e.Value)
			}
		}
		value, ok := row[field]
		if !ok {
			value = float64(0)
		}
		series = append(series, domain.MetricPoint{Key: e.Key, Value: number(value)})
	}
	return series, nil
}

// parseRows reads [{"label": ..., "nb_visits": ...}] responses.
func parseRows(body []byte, keyField, valueField string) (domain.MetricSeries, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}

	series := make(domain.MetricSeries, 0, len(rows))
	for _, row := range rows {
		key := fmt.Sprint(row[keyField])
		if row[keyField] == nil {
			key = fmt.Sprint(row["label"])
		}
		series = append(series, domain.MetricPoint{Key: key, Value: number(row[valueField])})
	}
	return series, nil
}

// number converts numeric strings, which some Matomo versions emit, to float64.
func number(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
