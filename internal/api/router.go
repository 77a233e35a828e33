package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the services behind the HTTP surface. Bus is optional.
type Dependencies struct {
	Ingestion Ingester
	Users     UserReader
	Tags      TagManager
	History   HistoryReader
	Bus       StatsSource
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(deps Dependencies, logger *slog.Logger) http.Handler {
	h := &Handlers{
		ingestion: deps.Ingestion,
		users:     deps.Users,
		tags:      deps.Tags,
		history:   deps.History,
		bus:       deps.Bus,
		logger:    logger.With("component", "api"),
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion.
		r.Post("/webhook/toll", h.IngestCrossing)
		r.Post("/users/import", h.ImportUsers)

		// Users and tags.
		r.Route("/users/{plate}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Get("/tag", h.GetPlateTag)
			r.Post("/tag", h.AssociateTag)
			r.Put("/tag", h.UpdateTag)
			r.Delete("/tag", h.RemoveTag)

			// History.
			r.Get("/invoices", h.ListInvoices)
			r.Get("/payments", h.ListPayments)
		})
		r.Get("/tags/{tag_id}", h.GetTag)

		// Operations.
		r.Get("/bus/stats", h.BusStats)
	})

	return r
}
