package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
	"github.com/veilgate/veilgate/internal/server/middleware"
)

// EffectiveFlag is a flag as the resolver sees it: override row merged over
// the system default.
type EffectiveFlag struct {
	Key     string         `json:"key"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

type EffectiveConfig struct {
	Key   string         `json:"key"`
	Value map[string]any `json:"value"`
}

type ListFlagsOutput struct {
	Body struct {
		Flags   []EffectiveFlag   `json:"flags"`
		Configs []EffectiveConfig `json:"configs"`
	}
}

type SetFlagsItem struct {
	Key     string         `json:"key" minLength:"1" doc:"Registered flag key"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

type SetFlagsInput struct {
	Body struct {
		Flags []SetFlagsItem `json:"flags" minItems:"1" doc:"Flags to set, applied atomically"`
	}
}

type SetFlagsOutput struct {
	Body struct {
		Updated int `json:"updated"`
	}
}

type SetConfigsItem struct {
	Key   string         `json:"key" minLength:"1" doc:"Registered config key"`
	Value map[string]any `json:"value" doc:"Structured config value"`
}

type SetConfigsInput struct {
	Body struct {
		Configs []SetConfigsItem `json:"configs" minItems:"1" doc:"Configs to set, applied atomically"`
	}
}

type SetConfigsOutput struct {
	Body struct {
		Updated int `json:"updated"`
	}
}

// RegisterFlagRoutes wires the tenant flag and config surface. Reads are open
// to any tenant role; writes require owner or admin.
func RegisterFlagRoutes(api huma.API, svc FlagService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-flags",
		Method:      http.MethodGet,
		Path:        "/flags",
		Summary:     "List effective flags and configs for the current tenant",
		Tags:        []string{"Flags"},
	}, func(ctx context.Context, input *struct{}) (*ListFlagsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		out := &ListFlagsOutput{}
		for _, key := range flags.FlagKeys() {
			enabled, err := svc.IsEnabled(ctx, tenantID, key)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to resolve flags", err)
			}
			cfg, err := svc.FlagConfig(ctx, tenantID, key)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to resolve flags", err)
			}
			out.Body.Flags = append(out.Body.Flags, EffectiveFlag{Key: key, Enabled: enabled, Config: cfg})
		}
		for _, key := range flags.ConfigKeys() {
			val, err := svc.Value(ctx, tenantID, key)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to resolve configs", err)
			}
			out.Body.Configs = append(out.Body.Configs, EffectiveConfig{Key: key, Value: val})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-flags",
		Method:      http.MethodPut,
		Path:        "/flags",
		Summary:     "Set flag overrides for the current tenant",
		Tags:        []string{"Flags"},
	}, func(ctx context.Context, input *SetFlagsInput) (*SetFlagsOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		toSet := make([]*domain.FeatureFlag, 0, len(input.Body.Flags))
		for _, f := range input.Body.Flags {
			if !flags.KnownFlag(f.Key) {
				return nil, huma.Error422UnprocessableEntity("unknown flag key: " + f.Key)
			}
			toSet = append(toSet, &domain.FeatureFlag{
				TenantID:  tenantID,
				Key:       f.Key,
				Enabled:   f.Enabled,
				Config:    f.Config,
				UpdatedAt: now,
			})
		}

		if err := svc.SetFlags(ctx, tenantID, toSet); err != nil {
			return nil, huma.Error500InternalServerError("failed to set flags", err)
		}

		out := &SetFlagsOutput{}
		out.Body.Updated = len(toSet)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-configs",
		Method:      http.MethodPut,
		Path:        "/configs",
		Summary:     "Set config overrides for the current tenant",
		Tags:        []string{"Flags"},
	}, func(ctx context.Context, input *SetConfigsInput) (*SetConfigsOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		toSet := make([]*domain.TenantConfig, 0, len(input.Body.Configs))
		for _, c := range input.Body.Configs {
			if !flags.KnownConfig(c.Key) {
				return nil, huma.Error422UnprocessableEntity("unknown config key: " + c.Key)
			}
			toSet = append(toSet, &domain.TenantConfig{
				TenantID:  tenantID,
				Key:       c.Key,
				Value:     c.Value,
				UpdatedAt: now,
			})
		}

		if err := svc.SetConfigs(ctx, tenantID, toSet); err != nil {
			return nil, huma.Error500InternalServerError("failed to set configs", err)
		}

		out := &SetConfigsOutput{}
		out.Body.Updated = len(toSet)
		return out, nil
	})
}

// requireOwner returns the tenant ID when the caller holds the owner or
// admin role within a tenant context.
func requireOwner(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error403Forbidden("tenant context required")
	}
	role, ok := middleware.RoleFromContext(ctx)
	if !ok || (role != middleware.RoleOwner && role != middleware.RoleAdmin) {
		return uuid.Nil, huma.Error403Forbidden("owner role required")
	}
	return tenantID, nil
}
