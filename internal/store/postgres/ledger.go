package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilgate/veilgate/internal/domain"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Apply moves a wallet balance and appends the matching ledger entry in one
// transaction. The SELECT ... FOR UPDATE on the bot user's row serializes
// concurrent movements for that user; different tenants never share a row so
// they never block each other. A debit below zero fails before any write.
func (r *LedgerRepo) Apply(ctx context.Context, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.Apply: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	applied, err := applyEntry(ctx, tx, e)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.Apply: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ledgerRepo.Apply: commit: %w", err)
	}

	return applied, nil
}

// applyEntry runs the balance movement inside an existing transaction. Shared
// with ReceiptRepo.Approve so approval and its ledger credit commit together.
func applyEntry(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	var balance int64

	err := tx.QueryRow(ctx,
		`SELECT balance FROM bot_users WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		e.TenantID, e.UserID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}

	newBalance := balance + e.Amount
	if newBalance < 0 {
		return nil, domain.ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`UPDATE bot_users SET balance = $1, updated_at = now()
		 WHERE tenant_id = $2 AND id = $3`,
		newBalance, e.TenantID, e.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	applied := *e
	applied.BalanceBefore = balance
	applied.BalanceAfter = newBalance

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, tenant_id, user_id, amount, balance_before, balance_after, ref_kind, ref_id, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		applied.ID, applied.TenantID, applied.UserID, applied.Amount,
		applied.BalanceBefore, applied.BalanceAfter,
		applied.RefKind, applied.RefID, applied.Note, applied.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}

	return &applied, nil
}

const ledgerColumns = `id, tenant_id, user_id, amount, balance_before, balance_after, ref_kind, ref_id, note, created_at`

func (r *LedgerRepo) collect(rows pgx.Rows, op string) ([]*domain.LedgerEntry, error) {
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry

		err := rows.Scan(
			&e.ID, &e.TenantID, &e.UserID, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.RefKind, &e.RefID, &e.Note, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return entries, nil
}

func (r *LedgerRepo) ListByUser(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		 WHERE tenant_id = $1 AND user_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.ListByUser: %w", err)
	}

	return r.collect(rows, "ledgerRepo.ListByUser")
}

func (r *LedgerRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ledgerRepo.ListByTenant: %w", err)
	}

	return r.collect(rows, "ledgerRepo.ListByTenant")
}

func (r *LedgerRepo) SumByUser(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	var sum int64

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		 WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ledgerRepo.SumByUser: %w", err)
	}

	return sum, nil
}
