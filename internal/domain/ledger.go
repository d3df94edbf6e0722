package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is an immutable record of one balance-affecting event. Amount is
// signed: positive credits, negative debits. BalanceBefore/After snapshot the
// wallet around the entry so the ledger is auditable without replay.
type LedgerEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	UserID        uuid.UUID // bot user whose wallet moved
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	RefKind       string // "receipt", "gateway", "admin_adjust", "usage"
	RefID         string
	Note          string
	CreatedAt     time.Time
}

type LedgerRepository interface {
	// Apply atomically locks the user's balance row, applies the signed
	// amount and appends the entry. A debit (negative amount) that would take
	// the balance negative fails with ErrInsufficientBalance before any side
	// effect. The row lock serializes concurrent movements per user; tenants
	// never contend with each other.
	Apply(ctx context.Context, e *LedgerEntry) (*LedgerEntry, error)
	ListByUser(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]*LedgerEntry, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*LedgerEntry, error)
	// SumByUser returns the signed sum of all entries for conservation checks.
	SumByUser(ctx context.Context, tenantID, userID uuid.UUID) (int64, error)
}
