package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/genfinity/covergen/internal/http/handlers"
	"github.com/genfinity/covergen/internal/infra"
	"github.com/genfinity/covergen/internal/middleware"
)

// NewRouter wires the HTTP surface.
func NewRouter(app *handlers.App, logger infra.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/covers", func(r chi.Router) {
		r.Post("/automated", app.SubmitAutomated)
		r.Post("/manual", app.SubmitManual)
		r.Get("/status/{job_id}", app.Status)
		r.Post("/approve/{job_id}", app.Approve)
		r.Post("/reject/{job_id}", app.Reject)
	})

	return r
}
