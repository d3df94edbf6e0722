package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
	"github.com/veilgate/veilgate/internal/server/middleware"
)

type CreateTenantInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Tenant display name"`
		BotToken string `json:"bot_token" minLength:"10" maxLength:"255" doc:"Telegram bot token the tenant is resolved by"`
		Plan     string `json:"plan,omitempty" enum:"free,pro,enterprise" default:"free" doc:"Billing plan"`
	}
}

type CreateTenantOutput struct {
	Body *domain.Tenant
}

type GetTenantInput struct {
	ID uuid.UUID `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body *domain.Tenant
}

type ListTenantsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type UpdateTenantStatusInput struct {
	ID   uuid.UUID `path:"id" doc:"Tenant ID"`
	Body struct {
		Status string `json:"status" enum:"active,suspended" doc:"New tenant status"`
	}
}

type UpdateTenantStatusOutput struct {
	Body *domain.Tenant
}

// RegisterTenantRoutes wires the cross-tenant admin surface. Every route here
// requires the platform admin role and every mutation is recorded in the
// audit trail with the acting admin and the target tenant.
func RegisterTenantRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/admin/tenants",
		Summary:     "Onboard a new tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}

		now := time.Now()
		t := &domain.Tenant{
			ID:        uuid.New(),
			BotToken:  input.Body.BotToken,
			Name:      input.Body.Name,
			Status:    domain.TenantActive,
			Plan:      input.Body.Plan,
			CreatedAt: now,
			UpdatedAt: now,
		}

		// A tenant is born with the full default flag and config set so the
		// resolver never observes a half-onboarded tenant.
		if err := store.Tenants().Create(ctx, t, flags.SeedFlags(t.ID, now), flags.SeedConfigs(t.ID, now)); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("bot token already registered")
			}
			return nil, huma.Error500InternalServerError("failed to create tenant", err)
		}

		recordAudit(ctx, store, "tenant.create", t.ID, "tenant", t.ID.String())

		return &CreateTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/admin/tenants",
		Summary:     "List all tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}

		tenants, err := store.Tenants().ListPaginated(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tenants", err)
		}

		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/admin/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}

		t, err := store.Tenants().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tenant not found")
			}
			return nil, huma.Error500InternalServerError("failed to get tenant", err)
		}

		return &GetTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant-status",
		Method:      http.MethodPut,
		Path:        "/admin/tenants/{id}/status",
		Summary:     "Suspend or reactivate a tenant",
		Description: "Suspension is the only deactivation mechanism; tenant rows and their data are never deleted.",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *UpdateTenantStatusInput) (*UpdateTenantStatusOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}

		status := domain.TenantStatus(input.Body.Status)
		if err := store.Tenants().UpdateStatus(ctx, input.ID, status); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tenant not found")
			}
			return nil, huma.Error500InternalServerError("failed to update tenant status", err)
		}

		recordAudit(ctx, store, "tenant.status."+input.Body.Status, input.ID, "tenant", input.ID.String())

		t, err := store.Tenants().GetByID(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to reload tenant", err)
		}

		return &UpdateTenantStatusOutput{Body: t}, nil
	})
}

// requireAdmin gates the cross-tenant admin routes on the platform admin role.
func requireAdmin(ctx context.Context) error {
	role, ok := middleware.RoleFromContext(ctx)
	if !ok || role != middleware.RoleAdmin {
		return huma.Error403Forbidden("admin role required")
	}
	return nil
}

// recordAudit appends a cross-tenant admin action to the audit trail. Audit
// failures are logged, not surfaced: the action itself already happened.
func recordAudit(ctx context.Context, store DataStore, action string, targetTenantID uuid.UUID, resource, resourceID string) {
	actorID, _ := middleware.UserIDFromContext(ctx)
	role, _ := middleware.RoleFromContext(ctx)

	err := store.Audit().Record(ctx, &domain.AuditEntry{
		ID:             uuid.New(),
		ActorID:        actorID,
		ActorRole:      role,
		Action:         action,
		TargetTenantID: targetTenantID,
		Resource:       resource,
		ResourceID:     resourceID,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("action", action).Str("target_tenant_id", targetTenantID.String()).Msg("api: audit record failed")
	}
}
