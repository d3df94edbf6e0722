package v1

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Users() domain.UserRepository
	BotUsers() domain.BotUserRepository
	Flags() domain.FlagRepository
	Cards() domain.CardRepository
	Ledger() domain.LedgerRepository
	Receipts() domain.ReceiptRepository
	Audit() domain.AuditRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, tenantID uuid.UUID, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	GenerateAPIKey(ctx context.Context, tenantID, userID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error)
}

// FlagService abstracts the flag resolver for handler testing.
// *flags.Resolver satisfies this interface. Reads go through the resolver so
// handlers see the same cached, default-backed view the rest of the service
// sees; writes go through it so caches are invalidated.
type FlagService interface {
	IsEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
	FlagConfig(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error)
	Value(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error)
	SetFlags(ctx context.Context, tenantID uuid.UUID, toSet []*domain.FeatureFlag) error
	SetConfigs(ctx context.Context, tenantID uuid.UUID, toSet []*domain.TenantConfig) error
}

// PaymentService abstracts receipt review operations for handler testing.
// *payment.Service satisfies this interface.
type PaymentService interface {
	SubmitReceipt(ctx context.Context, tenantID, userID uuid.UUID, cardID *uuid.UUID, amount int64, trackingCode string) (*domain.Receipt, error)
	Approve(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error)
	Reject(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, error)
}

// WalletService abstracts wallet operations for handler testing.
// *wallet.Service satisfies this interface.
type WalletService interface {
	Credit(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error)
	Balance(ctx context.Context, tenantID, userID uuid.UUID) (int64, error)
	History(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
}

// CardSelector abstracts rotation for handler testing.
// *rotation.Selector satisfies this interface.
type CardSelector interface {
	Next(ctx context.Context, tenantID uuid.UUID) (*domain.PaymentCard, error)
}
