package api

import "time"

type MetricPoint struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Report sections that are unavailable are encoded as null.
type Report map[string][]MetricPoint

type QueryStats struct {
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

type Vital struct {
	Value    *float64 `json:"value"`
	Category *string  `json:"category"`
}

type TimePeriod struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration_days"`
}

type Overview struct {
	URL    string            `json:"url"`
	Period TimePeriod        `json:"period"`
	Report Report            `json:"report"`
	Errors map[string]string `json:"errors,omitempty"`
}

type Coverage struct {
	URL   string  `json:"url"`
	State *string `json:"state"`
}

type Driver struct {
	Name string `json:"name"`
}

type Error struct {
	Error string `json:"error"`
}
