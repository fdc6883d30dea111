package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/de-tools/analytics-bridge/pkg/adapters"
	"github.com/de-tools/analytics-bridge/pkg/models/api"
	"github.com/de-tools/analytics-bridge/pkg/models/domain"
	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Service is the analytics facade the handler serves.
type Service interface {
	Drivers() []string
	Stats(ctx context.Context, target string, days int, metrics ...string) (domain.Report, error)
	PageViews(ctx context.Context, target string, days int) (domain.MetricSeries, error)
	Visits(ctx context.Context, target string, days int) (domain.MetricSeries, error)
	VisitDurations(ctx context.Context, target string, days int) (domain.MetricSeries, error)
	Countries(ctx context.Context, target string, days int) (domain.MetricSeries, error)
	Referrers(ctx context.Context, target string, days int) (domain.MetricSeries, error)
	All(ctx context.Context, target string, days int) (*domain.Overview, error)
	PagespeedFieldData(ctx context.Context, target string, override analytics.Options) (domain.MetricSeries, error)
	PagespeedLabData(ctx context.Context, target string, override analytics.Options) (domain.Vitals, error)
	SearchConsoleTimeSeries(ctx context.Context, target string, days int, override analytics.Options) (domain.Report, error)
	SearchConsoleTopQueries(ctx context.Context, target string, days int, override analytics.Options) (domain.MetricSeries, error)
	IndexCoverage(ctx context.Context, target, lang string, override analytics.Options) (string, error)
}

type seriesFunc func(ctx context.Context, target string, days int) (domain.MetricSeries, error)

type Handler struct {
	svc        Service
	categories map[string]seriesFunc
}

func NewHandler(svc Service) *Handler {
	return &Handler{
		svc: svc,
		categories: map[string]seriesFunc{
			domain.MetricPageViews:     svc.PageViews,
			domain.MetricVisits:        svc.Visits,
			domain.MetricVisitDuration: svc.VisitDurations,
			domain.MetricCountries:     svc.Countries,
			domain.MetricReferrers:     svc.Referrers,
		},
	}
}

func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	response := []api.Driver{}
	for _, name := range h.svc.Drivers() {
		response = append(response, api.Driver{Name: name})
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	target, days, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var metrics []string
	if raw := r.URL.Query().Get("metrics"); raw != "" {
		metrics = strings.Split(raw, ",")
	}

	report, err := h.svc.Stats(r.Context(), target, days, metrics...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapReportDomainToApi(report))
}

func (h *Handler) GetMetric(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")
	fetch, ok := h.categories[metric]
	if !ok {
		writeJSON(w, r, http.StatusNotFound, api.Error{Error: "unsupported metric: " + metric})
		return
	}
	target, days, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	series, err := fetch(r.Context(), target, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapSeriesDomainToApi(series))
}

func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	target, days, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	overview, err := h.svc.All(r.Context(), target, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapOverviewDomainToApi(overview))
}

func (h *Handler) GetFieldData(w http.ResponseWriter, r *http.Request) {
	override := analytics.Options{}
	if ff := r.URL.Query().Get("formFactor"); ff != "" {
		override["formFactor"] = ff
	}

	series, err := h.svc.PagespeedFieldData(r.Context(), r.URL.Query().Get("url"), override)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapSeriesDomainToApi(series))
}

func (h *Handler) GetLabData(w http.ResponseWriter, r *http.Request) {
	override := analytics.Options{}
	if strategy := r.URL.Query().Get("strategy"); strategy != "" {
		override["strategy"] = strategy
	}

	vitals, err := h.svc.PagespeedLabData(r.Context(), r.URL.Query().Get("url"), override)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapVitalsDomainToApi(vitals))
}

func (h *Handler) GetSearchSeries(w http.ResponseWriter, r *http.Request) {
	target, days, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.svc.SearchConsoleTimeSeries(r.Context(), target, days, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapReportDomainToApi(report))
}

func (h *Handler) GetSearchQueries(w http.ResponseWriter, r *http.Request) {
	target, days, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	series, err := h.svc.SearchConsoleTopQueries(r.Context(), target, days, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapSeriesDomainToApi(series))
}

func (h *Handler) GetIndexCoverage(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	state, err := h.svc.IndexCoverage(r.Context(), target, r.URL.Query().Get("lang"), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := api.Coverage{URL: target}
	if state != "" {
		response.State = &state
	}
	writeJSON(w, r, http.StatusOK, response)
}

func parseQuery(r *http.Request) (string, int, error) {
	target := r.URL.Query().Get("url")
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, domain.InvalidInputf("days must be an integer, got %q", raw)
		}
		days = n
	}
	return target, days, nil
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var remote *domain.RemoteError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("analytics request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("analytics request rejected")
	}
	writeJSON(w, r, status, api.Error{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("failed to encode response")
	}
}
