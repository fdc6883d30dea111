package domain

// Metric types understood by the drivers. They double as section names of a Report.
const (
	MetricPageViews     = "pageViews"
	MetricVisits        = "visits"
	MetricVisitDuration = "visitDuration"
	MetricCountries     = "countries"
	MetricReferrers     = "referrers"
	MetricPerformance   = "performance"
	MetricImpressions   = "impressions"
	MetricClicks        = "clicks"
	MetricCTR           = "ctr"
)

// OverviewSections are the fixed sections of an Overview report.
var OverviewSections = []string{
	MetricPageViews,
	MetricVisits,
	MetricVisitDuration,
	MetricCountries,
	MetricReferrers,
	MetricPerformance,
}

// MetricPoint is the atomic unit of normalized output.
type MetricPoint struct {
	Key   string // date, country code, query term, metric name
	Value any    // float64, string, nil, QueryStats or Vital
}

// MetricSeries keeps the order and multiplicity returned by the remote API.
// A nil series means the data is unavailable, an empty one means zero rows.
type MetricSeries []MetricPoint

// Report maps a section name to its series. Unavailable sections are present with a nil series.
type Report map[string]MetricSeries

// Has reports whether the section exists and carries data (possibly zero rows).
func (r Report) Has(section string) bool {
	s, ok := r[section]
	return ok && s != nil
}

// QueryStats is the composite value of a search query row.
type QueryStats struct {
	Impressions float64
	Clicks      float64
	CTR         float64
	Position    float64
}

// Vital is a single loading experience metric.
type Vital struct {
	Value    *float64
	Category *string // FAST, AVERAGE, SLOW
}

// Vitals always carries the keys listed in VitalKeys.
type Vitals map[string]Vital

const (
	VitalTTFB = "ttfb"
	VitalFCP  = "fcp"
	VitalLCP  = "lcp"
	VitalFID  = "fid"
	VitalCLS  = "cls"
)

var VitalKeys = []string{VitalTTFB, VitalFCP, VitalLCP, VitalFID, VitalCLS}

// Overview is the composite report of all sections for a single URL.
type Overview struct {
	URL    string
	Period TimePeriod
	Report Report
	// Errors holds the failure of every section that degraded to nil.
	Errors map[string]error
}
