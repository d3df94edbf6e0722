package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	v1 "github.com/veilgate/veilgate/internal/api/v1"
	"github.com/veilgate/veilgate/internal/auth"
	"github.com/veilgate/veilgate/internal/store/postgres"
)

func newAPI(r chi.Router, title string) huma.API {
	cfg := huma.DefaultConfig(title, "1.0.0")
	cfg.Servers = []*huma.Server{
		{URL: "/api/v1"},
	}
	return humachi.New(r, cfg)
}

func registerAuthRoutes(r chi.Router, authSvc *auth.Service) {
	api := newAPI(r, "Veilgate Auth API")
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAdminRoutes(r chi.Router, store *postgres.Store) {
	api := newAPI(r, "Veilgate Admin API")
	v1.RegisterTenantRoutes(api, store)
}

func registerTenantRoutes(r chi.Router, deps Deps) {
	api := newAPI(r, "Veilgate API")
	v1.RegisterAPIKeyRoutes(api, deps.Auth)
	v1.RegisterFlagRoutes(api, deps.Flags)
	v1.RegisterBotUserRoutes(api, deps.Store)
	v1.RegisterCardRoutes(api, deps.Store, deps.Selector)
	v1.RegisterReceiptRoutes(api, deps.Store, deps.Payments)
	v1.RegisterWalletRoutes(api, deps.Wallets)
}
