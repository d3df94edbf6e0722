package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilgate/veilgate/internal/domain"
)

type ReceiptRepo struct {
	pool *pgxpool.Pool
}

func NewReceiptRepo(pool *pgxpool.Pool) *ReceiptRepo {
	return &ReceiptRepo{pool: pool}
}

const receiptColumns = `id, tenant_id, user_id, card_id, amount, tracking_code, status,
	authority, reviewer_id, review_note, reviewed_at, needs_reconcile, created_at`

func (r *ReceiptRepo) Create(ctx context.Context, rc *domain.Receipt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO receipts (id, tenant_id, user_id, card_id, amount, tracking_code, status,
		   authority, reviewer_id, review_note, reviewed_at, needs_reconcile, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rc.ID, rc.TenantID, rc.UserID, rc.CardID, rc.Amount, rc.TrackingCode, rc.Status,
		rc.Authority, rc.ReviewerID, rc.ReviewNote, rc.ReviewedAt, rc.NeedsReconcile, rc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("receiptRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("receiptRepo.Create: %w", err)
	}

	return nil
}

func scanReceipt(row pgx.Row, op string) (*domain.Receipt, error) {
	var rc domain.Receipt

	err := row.Scan(
		&rc.ID, &rc.TenantID, &rc.UserID, &rc.CardID, &rc.Amount, &rc.TrackingCode, &rc.Status,
		&rc.Authority, &rc.ReviewerID, &rc.ReviewNote, &rc.ReviewedAt, &rc.NeedsReconcile, &rc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &rc, nil
}

func (r *ReceiptRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Receipt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanReceipt(row, "receiptRepo.GetByID")
}

func (r *ReceiptRepo) GetByTrackingCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Receipt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE tenant_id = $1 AND tracking_code = $2`,
		tenantID, code)
	return scanReceipt(row, "receiptRepo.GetByTrackingCode")
}

// GetByAuthority is the one deliberately cross-tenant lookup: a gateway
// callback carries only the authority code, and the receipt row it finds is
// what establishes tenant context for the rest of the request.
func (r *ReceiptRepo) GetByAuthority(ctx context.Context, authority string) (*domain.Receipt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE authority = $1 AND authority <> ''`,
		authority)
	return scanReceipt(row, "receiptRepo.GetByAuthority")
}

func (r *ReceiptRepo) ListByStatus(ctx context.Context, tenantID uuid.UUID, status domain.ReceiptStatus, limit, offset int) ([]*domain.Receipt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipts
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, status, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("receiptRepo.ListByStatus: %w", err)
	}
	defer rows.Close()

	var receipts []*domain.Receipt
	for rows.Next() {
		var rc domain.Receipt

		err = rows.Scan(
			&rc.ID, &rc.TenantID, &rc.UserID, &rc.CardID, &rc.Amount, &rc.TrackingCode, &rc.Status,
			&rc.Authority, &rc.ReviewerID, &rc.ReviewNote, &rc.ReviewedAt, &rc.NeedsReconcile, &rc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("receiptRepo.ListByStatus: scan: %w", err)
		}

		receipts = append(receipts, &rc)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("receiptRepo.ListByStatus: rows: %w", err)
	}

	return receipts, nil
}

// Approve transitions pending→approved and credits the wallet in one
// transaction. The conditional UPDATE on status = 'pending' is the idempotence
// guard: a second approval matches zero rows and nothing is re-applied.
func (r *ReceiptRepo) Approve(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("receiptRepo.Approve: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`UPDATE receipts
		 SET status = $1, reviewer_id = $2, review_note = $3, reviewed_at = now(), needs_reconcile = TRUE
		 WHERE tenant_id = $4 AND id = $5 AND status = $6
		 RETURNING `+receiptColumns,
		domain.ReceiptApproved, reviewerID, note, tenantID, id, domain.ReceiptPending,
	)

	rc, err := scanReceipt(row, "receiptRepo.Approve")
	if errors.Is(err, domain.ErrNotFound) {
		// Either the receipt does not exist in this tenant, or it is already
		// terminal. Distinguish so a double approval signals clearly.
		existing, getErr := r.GetByID(ctx, tenantID, id)
		if getErr != nil {
			return nil, nil, getErr
		}
		if existing.Status != domain.ReceiptPending {
			return nil, nil, fmt.Errorf("receiptRepo.Approve: %w", domain.ErrInvalidTransition)
		}
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	entry, err := applyEntry(ctx, tx, &domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    rc.UserID,
		Amount:    rc.Amount,
		RefKind:   "receipt",
		RefID:     rc.ID.String(),
		Note:      "receipt approved",
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("receiptRepo.Approve: ledger: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("receiptRepo.Approve: commit: %w", err)
	}

	return rc, entry, nil
}

// Reject transitions pending→rejected with the same terminal-state guard as
// Approve. No ledger movement occurs.
func (r *ReceiptRepo) Reject(ctx context.Context, tenantID, id, reviewerID uuid.UUID, note string) (*domain.Receipt, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE receipts
		 SET status = $1, reviewer_id = $2, review_note = $3, reviewed_at = now()
		 WHERE tenant_id = $4 AND id = $5 AND status = $6
		 RETURNING `+receiptColumns,
		domain.ReceiptRejected, reviewerID, note, tenantID, id, domain.ReceiptPending,
	)

	rc, err := scanReceipt(row, "receiptRepo.Reject")
	if errors.Is(err, domain.ErrNotFound) {
		existing, getErr := r.GetByID(ctx, tenantID, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status != domain.ReceiptPending {
			return nil, fmt.Errorf("receiptRepo.Reject: %w", domain.ErrInvalidTransition)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return rc, nil
}

func (r *ReceiptRepo) SetNeedsReconcile(ctx context.Context, tenantID, id uuid.UUID, needs bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE receipts SET needs_reconcile = $1 WHERE tenant_id = $2 AND id = $3`,
		needs, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("receiptRepo.SetNeedsReconcile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("receiptRepo.SetNeedsReconcile: %w", domain.ErrNotFound)
	}

	return nil
}

// ListNeedsReconcile feeds the provisioning retry loop. The scan is
// cross-tenant; the loop processes each receipt in its own tenant-scoped unit.
func (r *ReceiptRepo) ListNeedsReconcile(ctx context.Context, limit int) ([]*domain.Receipt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipts
		 WHERE needs_reconcile AND status = $1
		 ORDER BY reviewed_at
		 LIMIT $2`,
		domain.ReceiptApproved, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("receiptRepo.ListNeedsReconcile: %w", err)
	}
	defer rows.Close()

	var receipts []*domain.Receipt
	for rows.Next() {
		var rc domain.Receipt

		err = rows.Scan(
			&rc.ID, &rc.TenantID, &rc.UserID, &rc.CardID, &rc.Amount, &rc.TrackingCode, &rc.Status,
			&rc.Authority, &rc.ReviewerID, &rc.ReviewNote, &rc.ReviewedAt, &rc.NeedsReconcile, &rc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("receiptRepo.ListNeedsReconcile: scan: %w", err)
		}

		receipts = append(receipts, &rc)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("receiptRepo.ListNeedsReconcile: rows: %w", err)
	}

	return receipts, nil
}
