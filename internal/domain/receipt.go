package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptApproved ReceiptStatus = "approved"
	ReceiptRejected ReceiptStatus = "rejected"
)

// ValidTransition reports whether a receipt may move from s to next.
// pending is the only state with outgoing edges; approved and rejected are
// terminal and a repeated review attempt is rejected, never re-applied.
func (s ReceiptStatus) ValidTransition(next ReceiptStatus) bool {
	if s != ReceiptPending {
		return false
	}
	return next == ReceiptApproved || next == ReceiptRejected
}

// Receipt is a card-to-card payment submission awaiting manual review.
// pending is the only non-terminal state; approved and rejected are terminal
// and immutable.
type Receipt struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	UserID         uuid.UUID
	CardID         *uuid.UUID // card presented at submission time, nil if gateway
	Amount         int64
	TrackingCode   string
	Status         ReceiptStatus
	Authority      string // gateway authority code, empty for card-to-card
	ReviewerID     *uuid.UUID
	ReviewNote     string
	ReviewedAt     *time.Time
	NeedsReconcile bool // approved but provisioning has not completed yet
	CreatedAt      time.Time
}

type ReceiptRepository interface {
	Create(ctx context.Context, r *Receipt) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Receipt, error)
	GetByTrackingCode(ctx context.Context, tenantID uuid.UUID, code string) (*Receipt, error)
	// GetByAuthority joins a gateway callback back to its receipt; the
	// authority code is the only credential a callback carries, so lookup is
	// cross-tenant and the caller binds tenant context from the row.
	GetByAuthority(ctx context.Context, authority string) (*Receipt, error)
	ListByStatus(ctx context.Context, tenantID uuid.UUID, status ReceiptStatus, limit, offset int) ([]*Receipt, error)

	// Approve transitions pending→approved and appends the ledger credit in
	// one transaction. A receipt not in pending fails with
	// ErrInvalidTransition and nothing is written.
	Approve(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*Receipt, *LedgerEntry, error)
	// Reject transitions pending→rejected with the same terminal-state guard.
	Reject(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*Receipt, error)

	// Reconciliation support for provisioning retries.
	SetNeedsReconcile(ctx context.Context, tenantID, id uuid.UUID, needs bool) error
	ListNeedsReconcile(ctx context.Context, limit int) ([]*Receipt, error)
}
