// Package server mounts the administrative HTTP surface: authentication,
// policy and relation CRUD, the model-config lifecycle, and the enforcer
// admin endpoints. Request bodies are schema-validated before dispatch.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/authplane/authplane/internal/app"
	"github.com/authplane/authplane/internal/middleware"
	"github.com/authplane/authplane/internal/telemetry"
)

// RouterOptions controls router construction. The zero value plus App is
// valid; defaults apply where fields are unset.
type RouterOptions struct {
	App         *app.App
	CORSOptions *cors.Options
	Middleware  []func(http.Handler) http.Handler
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter assembles the chi router with shared middleware, the public
// auth endpoints, and the guarded admin API.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	h, err := NewHandlers(opts.App)
	if err != nil {
		return nil, err
	}

	serverMetrics, err := telemetry.NewServerMetrics()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics(serverMetrics))

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	a := opts.App
	r.Route("/api/v1", func(r chi.Router) {
		// Public: the credential in the body is the authentication.
		r.Post("/auth/login", h.login)
		r.Post("/auth/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authn(a.Signer, a.Cache, a.TokenSvc))

			// Dropping your own session needs a live access token but no
			// policy grant.
			r.Post("/auth/signout", h.signOut)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authz(a.Coordinator, a.Config.AuthzEnabled))

				r.Route("/policies", func(r chi.Router) {
					r.Get("/", h.pagePolicies)
					r.Post("/", h.createPolicy)
					r.Post("/batch", h.batchPolicies)
					r.Get("/{id}", h.getPolicy)
					r.Delete("/{id}", h.deletePolicy)
				})

				r.Route("/relations", func(r chi.Router) {
					r.Get("/", h.pageRelations)
					r.Post("/", h.createRelation)
					r.Get("/{id}", h.getRelation)
					r.Delete("/{id}", h.deleteRelation)
				})

				r.Route("/models", func(r chi.Router) {
					r.Get("/", h.pageModels)
					r.Post("/", h.createDraft)
					r.Get("/active", h.activeModel)
					r.Get("/diff", h.diffModels)
					r.Get("/{id}", h.getModel)
					r.Put("/{id}", h.updateDraft)
					r.Post("/{id}/publish", h.publishModel)
					r.Post("/{id}/rollback", h.rollbackModel)
				})

				r.Get("/roles/topology", h.roleTopology)
				r.Post("/users/{id}/verify-email", h.verifyEmail)
				r.Post("/admin/enforcer/reload", h.reloadEnforcer)
			})
		})
	})

	return r, nil
}

// NewH2CHandler wraps the router with an h2c server for HTTP/2 over
// cleartext in development deployments.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	return h2c.NewHandler(router, &http2.Server{}), nil
}
