package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/analytics-bridge/pkg/handlers/analytics"
	"github.com/de-tools/analytics-bridge/pkg/observability"
	bridgemiddleware "github.com/de-tools/analytics-bridge/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Analytics handlers.Service
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// ConfigureRouter builds the API router.
func ConfigureRouter(config Config) *chi.Mux {
	h := handlers.NewHandler(config.Dependencies.Analytics)
	logger := config.Dependencies.Logger

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(bridgemiddleware.Logger(&logger))
	if config.Dependencies.Metrics != nil {
		router.Use(bridgemiddleware.Metrics(config.Dependencies.Metrics))
	}
	router.Use(middleware.Recoverer)

	if config.Dependencies.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", config.Dependencies.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/drivers", h.ListDrivers)
		r.Get("/stats", h.GetStats)
		r.Get("/stats/{metric}", h.GetMetric)
		r.Get("/overview", h.GetOverview)
		r.Get("/pagespeed/field", h.GetFieldData)
		r.Get("/pagespeed/lab", h.GetLabData)
		r.Get("/search-console/series", h.GetSearchSeries)
		r.Get("/search-console/queries", h.GetSearchQueries)
		r.Get("/search-console/coverage", h.GetIndexCoverage)
	})

	return router
}

func NewWebAPI(config Config) *WebAPI {
	router := ConfigureRouter(config)
	logger := config.Dependencies.Logger

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
