package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/veilgate/veilgate/internal/auth"
	"github.com/veilgate/veilgate/internal/bot"
	"github.com/veilgate/veilgate/internal/config"
	"github.com/veilgate/veilgate/internal/flags"
	"github.com/veilgate/veilgate/internal/payment"
	"github.com/veilgate/veilgate/internal/rotation"
	"github.com/veilgate/veilgate/internal/server/middleware"
	"github.com/veilgate/veilgate/internal/store/postgres"
	"github.com/veilgate/veilgate/internal/wallet"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      *postgres.Store
	cfg        *config.Config
}

// Deps carries the wired services the server exposes over HTTP.
type Deps struct {
	Store    *postgres.Store
	Auth     *auth.Service
	Flags    *flags.Resolver
	Payments *payment.Service
	Wallets  *wallet.Service
	Selector *rotation.Selector
	Webhook  *bot.WebhookHandler
	Callback *payment.CallbackHandler
}

// New creates a Server with all routes wired. ctx bounds the background
// goroutines of the per-route rate limiters.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		store:  deps.Store,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with three sub-groups:
	// 1. Unauthenticated group for login/registration, limited by IP.
	// 2. Admin group for the cross-tenant surface; no tenant requirement
	//    since platform admin tokens carry no tenant.
	// 3. Tenant group for everything else, limited per tenant.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))
			registerAuthRoutes(r, deps.Auth)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret, deps.Store.Users(), deps.Store.Tenants()))
			r.Use(middleware.RequireAdmin())
			registerAdminRoutes(r, deps.Store)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret, deps.Store.Users(), deps.Store.Tenants()))
			r.Use(middleware.RequireTenant())
			r.Use(middleware.RateLimit(ctx, 100, 200))
			registerTenantRoutes(r, deps)
		})
	})

	// Bot ingress: one webhook path per tenant bot token, limited by IP since
	// the caller is not authenticated until the token resolves.
	router.Route("/webhook", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 30, 60))
		r.Post("/{botToken}", deps.Webhook.ServeHTTP)
	})

	// Gateway redirect target. Unauthenticated: the authority code in the
	// query is the credential.
	router.Route("/payment", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 10, 20))
		r.Get("/callback/{provider}", deps.Callback.ServeHTTP)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
