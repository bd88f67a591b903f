/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Latency histogram per route pattern
  5. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/attendance/*     Attendance engine
  /api/fighters/*       Fighter registry and payments
  /api/coaches/*        Coach registry
  /api/scenarios/*      Demo scenarios (dev only)
  /health, /metrics     Operations

SECURITY NOTE:
  Authentication is expected in front of this service; it forwards the
  admin identity in X-Admin-User.

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

var defaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	origins := h.corsOrigins
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", AdminUserHeader},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Method("GET", "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Post("/", h.MarkAttendance)
			r.Get("/daily-overview", h.GetDailyOverview)
			r.Post("/bulk", h.MarkBulk)
			r.Get("/{id}", h.GetFighterAttendance)
			r.Delete("/{id}", h.DeleteAttendance)
		})

		r.Route("/fighters", func(r chi.Router) {
			r.Get("/", h.ListFighters)
			r.Post("/", h.CreateFighter)
			r.Get("/{id}", h.GetFighter)
			r.Get("/{id}/payments", h.ListPayments)
			r.Post("/{id}/payments", h.CreatePayment)
		})

		r.Route("/coaches", func(r chi.Router) {
			r.Get("/", h.ListCoaches)
			r.Post("/", h.CreateCoach)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
