/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Sets up the chi router with all API routes and middleware.

ROUTER: chi (github.com/go-chi/chi/v5)
  Lightweight, idiomatic router compatible with net/http.

MIDDLEWARE STACK:
  1. Logger - Logs all requests
  2. Recoverer - Catches panics, returns 500
  3. RequestID - Adds X-Request-ID header
  4. CORS - Allows the configured origins

ROUTE GROUPS:
  /api/commissions/* - Calculate and reconcile
  /api/transactions/* - Book of business rows
  /api/policies/*    - Per-policy balance
  /api/balances      - Book-wide balance report
  /api/renewals/*    - Renewal candidates, renew, scheduler scans
  /api/sessions/*    - Staged statement entry
  /api/statements    - Applied statement batches
  /api/export        - CSV / XLSX download
  /api/scenarios/*   - Demo scenarios (when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/commissions/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string

	// Scenarios mounts the demo scenario routes, which can reset the store.
	Scenarios bool
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Post("/reconcile", h.Reconcile)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
		})

		r.Get("/policies/{policyNumber}/balance", h.GetPolicyBalance)
		r.Get("/balances", h.ListBalances)

		r.Route("/renewals", func(r chi.Router) {
			r.Get("/", h.ListRenewals)
			r.Post("/scan", h.TriggerRenewalScan)
			r.Get("/scans", h.ListRenewalScans)
			r.Post("/{id}/renew", h.Renew)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Delete("/{id}", h.DeleteSession)
			r.Post("/{id}/lines", h.AddSessionLine)
			r.Delete("/{id}/lines/{index}", h.RemoveSessionLine)
			r.Post("/{id}/commit", h.CommitSession)
		})

		r.Get("/statements", h.ListStatements)
		r.Get("/export", h.Export)

		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetBook)
			})
		}
	})

	return r
}
