package analytics

import (
	"context"
	"slices"
	"strings"

	"github.com/de-tools/analytics-bridge/pkg/models/domain"
)

const DefaultDays = 30

// Driver is implemented by every analytics backend.
type Driver interface {
	// Stats returns the requested sections for the target over the given window.
	// A nil report means the backend is not configured.
	Stats(ctx context.Context, q Query) (domain.Report, error)
	// SupportedMetrics returns the metric types the driver can fill.
	SupportedMetrics() []string
}

// Query selects what a driver reports on.
type Query struct {
	Target  string
	Days    int
	Metrics []string
}

// Validate checks the query before any remote call and applies defaults.
func (q Query) Validate() (Query, error) {
	q.Target = strings.TrimSpace(q.Target)
	if q.Target == "" {
		return q, domain.InvalidInputf("target must be a non-empty string")
	}
	if q.Days < 0 {
		return q, domain.InvalidInputf("days must be positive, got %d", q.Days)
	}
	if q.Days == 0 {
		q.Days = DefaultDays
	}
	return q, nil
}

// Select returns the requested metrics that should be fetched, in the order of supported.
// An empty request selects all supported metrics.
func (q Query) Select(supported []string) []string {
	if len(q.Metrics) == 0 {
		return slices.Clone(supported)
	}
	var selected []string
	for _, m := range supported {
		if slices.Contains(q.Metrics, m) {
			selected = append(selected, m)
		}
	}
	return selected
}

// NewReport returns a report holding a nil series for every requested metric.
func (q Query) NewReport(supported []string) domain.Report {
	report := make(domain.Report)
	keys := q.Metrics
	if len(keys) == 0 {
		keys = supported
	}
	for _, m := range keys {
		report[m] = nil
	}
	return report
}
