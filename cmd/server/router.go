package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/crewviz/reportd/internal/api"
	apimiddleware "github.com/crewviz/reportd/internal/api/middleware"
)

// reportingRouteClass is the rate limiter class protecting the heavy
// reporting endpoints.
const reportingRouteClass = "reporting_heavy"

// setupRouter creates the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	reportHandler := api.NewReportHandler(app.service, app.results, app.logger)
	authMiddleware := apimiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)

	r.Route("/reports", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/jobs", reportHandler.ListJobs)
		r.Get("/jobs/{id}", reportHandler.GetJob)
		r.Get("/jobs/{id}/download", reportHandler.DownloadResult)

		r.Post("/presets", reportHandler.CreatePreset)
		r.Get("/presets", reportHandler.ListPresets)
		r.Delete("/presets/{id}", reportHandler.DeletePreset)

		// Report generation entry points sit behind the token bucket:
		// admission is decided before a request reaches the cache or
		// the queue. Polling and preset management stay unthrottled.
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.Throttle(app.limiter, reportingRouteClass))
			r.Post("/jobs", reportHandler.CreateJob)
			r.Get("/view", reportHandler.ViewReport)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
