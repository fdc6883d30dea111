package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/observability"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics records request counts and durations labelled with the matched route pattern.
// Requests that match no route share the "unmatched" label.
func Metrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)

			path := "unmatched"
			if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(ww.Status())).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
