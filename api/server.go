/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/groups/*         Group configuration, periods, loans, fine rules
  /api/members/*        Member records
  /api/periods/*        Period views, close, bulk payments
  /api/contributions/*  Single payment updates

SECURITY NOTE:
  Authorization is delegated to the Handler's Authorizer; the default
  AllowAll is for dev / single-operator deployments.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Group routes
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.CreateGroup)
			r.Get("/{id}", h.GetGroup)
			r.Get("/{id}/summary", h.GetSummary)

			r.Get("/{id}/fine-rule", h.GetFineRule)
			r.Put("/{id}/fine-rule", h.PutFineRule)

			r.Get("/{id}/members", h.ListMemberships)
			r.Post("/{id}/members", h.AddMembership)

			r.Get("/{id}/loans", h.ListLoans)
			r.Post("/{id}/loans", h.CreateLoan)
			r.Post("/{id}/loans/repay", h.RepayLoan)

			r.Get("/{id}/periods", h.ListPeriods)
			r.Post("/{id}/periods", h.OpenPeriod)
			r.Get("/{id}/periods/current", h.GetCurrentPeriod)

			r.Post("/{id}/recompute", h.RecomputeStanding)
		})

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
		})

		// Period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/{id}", h.GetPeriod)
			r.Post("/{id}/close", h.ClosePeriod)
			r.Patch("/{id}/contributions", h.BulkRecordPayments)
		})

		// Contribution routes
		r.Route("/contributions", func(r chi.Router) {
			r.Patch("/{id}", h.RecordPayment)
		})
	})

	return r
}
