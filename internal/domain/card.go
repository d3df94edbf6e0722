package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RotationStrategy string

const (
	RotationRoundRobin RotationStrategy = "round_robin"
	RotationRandom     RotationStrategy = "random"
	RotationTimeBased  RotationStrategy = "time_based"
	RotationWeighted   RotationStrategy = "weighted"
)

// PaymentCard is a tenant-owned card-to-card receiving card with rotation
// metadata. Inactive cards are never selectable.
type PaymentCard struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Number       string
	HolderName   string
	BankName     string
	Active       bool
	UseCount     int64
	SuccessCount int64
	FailureCount int64
	LastUsedAt   *time.Time // nullable, never used yet
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SuccessRate returns observed successes over settled outcomes, defaulting to
// 1.0 for a card with no history so new cards are not starved.
func (c *PaymentCard) SuccessRate() float64 {
	settled := c.SuccessCount + c.FailureCount
	if settled == 0 {
		return 1.0
	}
	return float64(c.SuccessCount) / float64(settled)
}

type CardRepository interface {
	Create(ctx context.Context, c *PaymentCard) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*PaymentCard, error)
	// ListActive returns the tenant's active cards in creation order, the
	// stable order round-robin cycles through.
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]*PaymentCard, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*PaymentCard, error)
	Update(ctx context.Context, c *PaymentCard) error
	SetActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error
	// RecordUse bumps use_count and last_used_at for a selection.
	RecordUse(ctx context.Context, tenantID, id uuid.UUID) error
	// RecordOutcome settles a prior selection once the payment outcome is known.
	RecordOutcome(ctx context.Context, tenantID, id uuid.UUID, success bool) error
}
