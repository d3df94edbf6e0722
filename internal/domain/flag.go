package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeatureFlag is a per-tenant boolean toggle with optional structured config.
// Absence of a row means "use the system default", never "false".
type FeatureFlag struct {
	TenantID  uuid.UUID
	Key       string
	Enabled   bool
	Config    map[string]any
	UpdatedAt time.Time
}

// TenantConfig is a per-tenant structured configuration value. Same absence
// semantics as FeatureFlag: no row means the system default applies.
type TenantConfig struct {
	TenantID  uuid.UUID
	Key       string
	Value     map[string]any
	UpdatedAt time.Time
}

type FlagRepository interface {
	GetFlag(ctx context.Context, tenantID uuid.UUID, key string) (*FeatureFlag, error)
	// SetFlags writes all given flags in one transaction; a reader never
	// observes some of a multi-key update applied and the rest not.
	SetFlags(ctx context.Context, tenantID uuid.UUID, flags []*FeatureFlag) error
	DeleteFlag(ctx context.Context, tenantID uuid.UUID, key string) error
	ListFlags(ctx context.Context, tenantID uuid.UUID) ([]*FeatureFlag, error)

	GetConfig(ctx context.Context, tenantID uuid.UUID, key string) (*TenantConfig, error)
	SetConfigs(ctx context.Context, tenantID uuid.UUID, configs []*TenantConfig) error
	DeleteConfig(ctx context.Context, tenantID uuid.UUID, key string) error
	ListConfigs(ctx context.Context, tenantID uuid.UUID) ([]*TenantConfig, error)
}
