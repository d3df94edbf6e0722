package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
)

// FlagChecker is the resolver surface the service needs.
type FlagChecker interface {
	IsEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
}

// Service is the wallet facade over the ledger. Balances only ever move
// through ledger entries; there is no direct balance write path.
type Service struct {
	ledger domain.LedgerRepository
	users  domain.BotUserRepository
	flags  FlagChecker
}

func NewService(ledger domain.LedgerRepository, users domain.BotUserRepository, checker FlagChecker) *Service {
	return &Service{ledger: ledger, users: users, flags: checker}
}

// requireEnabled rejects wallet operations for tenants that have the wallet
// feature switched off.
func (s *Service) requireEnabled(ctx context.Context, tenantID uuid.UUID) error {
	enabled, err := s.flags.IsEnabled(ctx, tenantID, flags.KeyWallet)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("wallet disabled: %w", domain.ErrForbidden)
	}
	return nil
}

// Credit adds amount to the user's wallet. Amount must be positive.
func (s *Service) Credit(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error) {
	if err := s.requireEnabled(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("wallet.Credit: %w", err)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("wallet.Credit: amount must be positive, got %d", amount)
	}
	entry, err := s.ledger.Apply(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Amount:    amount,
		RefKind:   refKind,
		RefID:     refID,
		Note:      note,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("wallet.Credit: %w", err)
	}
	return entry, nil
}

// Debit removes amount from the user's wallet. Amount must be positive; the
// ledger rejects the movement with ErrInsufficientBalance if the wallet would
// go negative, with no partial effect.
func (s *Service) Debit(ctx context.Context, tenantID, userID uuid.UUID, amount int64, refKind, refID, note string) (*domain.LedgerEntry, error) {
	if err := s.requireEnabled(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("wallet.Debit: %w", err)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("wallet.Debit: amount must be positive, got %d", amount)
	}
	entry, err := s.ledger.Apply(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Amount:    -amount,
		RefKind:   refKind,
		RefID:     refID,
		Note:      note,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("wallet.Debit: %w", err)
	}
	return entry, nil
}

// Balance returns the user's current wallet balance.
func (s *Service) Balance(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	if err := s.requireEnabled(ctx, tenantID); err != nil {
		return 0, fmt.Errorf("wallet.Balance: %w", err)
	}
	u, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return 0, fmt.Errorf("wallet.Balance: %w", err)
	}
	return u.Balance, nil
}

// History lists the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	if err := s.requireEnabled(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("wallet.History: %w", err)
	}
	entries, err := s.ledger.ListByUser(ctx, tenantID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet.History: %w", err)
	}
	return entries, nil
}

// Audit verifies the conservation invariant for one user: the ledger sum must
// equal the stored balance. A mismatch means the ledger and balance diverged
// and needs operator attention. Audit works regardless of the wallet flag so
// a disabled wallet can still be verified.
func (s *Service) Audit(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	u, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return false, fmt.Errorf("wallet.Audit: %w", err)
	}
	sum, err := s.ledger.SumByUser(ctx, tenantID, userID)
	if err != nil {
		return false, fmt.Errorf("wallet.Audit: %w", err)
	}
	return sum == u.Balance, nil
}
