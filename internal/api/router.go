package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/dealdocs/engine/internal/api/handlers"
	mw "github.com/dealdocs/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret       []byte
	TrustProxy       bool
	Limiter          *mw.Limiter
	AuthHandler      *handlers.AuthHandler
	DealsHandler     *handlers.DealsHandler
	DocumentsHandler *handlers.DocumentsHandler
	HealthHandler    *handlers.HealthHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	if dep.TrustProxy {
		r.Use(chimid.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	if dep.Limiter != nil {
		r.Use(mw.RateLimit(dep.Limiter))
	}
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := dep.HealthHandler
	if hh == nil {
		hh = handlers.NewHealthHandler(nil)
	}
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		// Auth routes (public)
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
		})

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Route("/deals/{dealID}/documents", func(dr chi.Router) {
				dr.Get("/", dep.DealsHandler.ListDocuments)
				dr.Post("/generate", dep.DealsHandler.Generate)
				dr.Get("/status", dep.DealsHandler.Status)
			})

			protected.Route("/documents/{id}", func(dr chi.Router) {
				dr.Get("/download", dep.DocumentsHandler.Download)
				dr.Post("/sign", dep.DocumentsHandler.Sign)
				dr.Post("/void", dep.DocumentsHandler.Void)
			})
		})
	})

	return r
}
