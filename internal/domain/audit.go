package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEntry records a privileged operation. Cross-tenant admin actions must
// always produce one: who acted, when, and against which tenant.
type AuditEntry struct {
	ID             uuid.UUID
	ActorID        uuid.UUID
	ActorRole      string
	Action         string // "tenant.create", "tenant.suspend", "tenant.list", etc.
	TargetTenantID uuid.UUID
	Resource       string
	ResourceID     string
	Details        map[string]any
	CreatedAt      time.Time
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListByTenant(ctx context.Context, targetTenantID uuid.UUID, limit, offset int) ([]*AuditEntry, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*AuditEntry, error)
}
