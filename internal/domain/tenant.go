package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tenant is one bot instance on the platform. The bot token is the external
// credential a tenant is resolved by; exactly one tenant exists per token.
// Tenants are never physically deleted while referencing data exists; they
// are suspended via Status instead.
type Tenant struct {
	ID        uuid.UUID
	BotToken  string
	Name      string
	Status    TenantStatus
	Plan      string // "free", "pro", "enterprise"
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Tenant) Active() bool { return t.Status == TenantActive }

type TenantRepository interface {
	// Create inserts the tenant and its initial flag/config rows in a single
	// transaction; partial onboarding must never be observable.
	Create(ctx context.Context, t *Tenant, flags []*FeatureFlag, configs []*TenantConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByBotToken(ctx context.Context, token string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status TenantStatus) error
	ListPaginated(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
