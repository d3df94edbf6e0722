package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BotUser is an end user of a tenant's bot. ExternalID is the chat platform's
// numeric user id; it is unique only within a tenant — the same person may
// exist under several tenants as independent rows.
type BotUser struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ExternalID int64
	Username   string
	Balance    int64 // smallest currency unit; derived from the ledger, mutated only with it
	Blocked    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type BotUserRepository interface {
	Create(ctx context.Context, u *BotUser) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*BotUser, error)
	GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*BotUser, error)
	Update(ctx context.Context, u *BotUser) error
	ListPaginated(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*BotUser, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
