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

type CardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

const cardColumns = `id, tenant_id, number, holder_name, bank_name, active,
	use_count, success_count, failure_count, last_used_at, created_at, updated_at`

func (r *CardRepo) Create(ctx context.Context, c *domain.PaymentCard) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_cards (id, tenant_id, number, holder_name, bank_name, active,
		   use_count, success_count, failure_count, last_used_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.TenantID, c.Number, c.HolderName, c.BankName, c.Active,
		c.UseCount, c.SuccessCount, c.FailureCount, c.LastUsedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cardRepo.Create: %w", err)
	}

	return nil
}

func scanCard(row pgx.Row, op string) (*domain.PaymentCard, error) {
	var c domain.PaymentCard

	err := row.Scan(
		&c.ID, &c.TenantID, &c.Number, &c.HolderName, &c.BankName, &c.Active,
		&c.UseCount, &c.SuccessCount, &c.FailureCount, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

func (r *CardRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.PaymentCard, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM payment_cards WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanCard(row, "cardRepo.GetByID")
}

func (r *CardRepo) collect(rows pgx.Rows, op string) ([]*domain.PaymentCard, error) {
	defer rows.Close()

	var cards []*domain.PaymentCard
	for rows.Next() {
		var c domain.PaymentCard

		err := rows.Scan(
			&c.ID, &c.TenantID, &c.Number, &c.HolderName, &c.BankName, &c.Active,
			&c.UseCount, &c.SuccessCount, &c.FailureCount, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return cards, nil
}

// ListActive returns active cards in creation order. Round-robin relies on
// this order being stable across calls.
func (r *CardRepo) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentCard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cardColumns+` FROM payment_cards
		 WHERE tenant_id = $1 AND active
		 ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.ListActive: %w", err)
	}

	return r.collect(rows, "cardRepo.ListActive")
}

func (r *CardRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentCard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cardColumns+` FROM payment_cards
		 WHERE tenant_id = $1
		 ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("cardRepo.List: %w", err)
	}

	return r.collect(rows, "cardRepo.List")
}

func (r *CardRepo) Update(ctx context.Context, c *domain.PaymentCard) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_cards SET number = $1, holder_name = $2, bank_name = $3, active = $4, updated_at = now()
		 WHERE tenant_id = $5 AND id = $6`,
		c.Number, c.HolderName, c.BankName, c.Active, c.TenantID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("cardRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cardRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *CardRepo) SetActive(ctx context.Context, tenantID, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_cards SET active = $1, updated_at = now()
		 WHERE tenant_id = $2 AND id = $3`,
		active, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("cardRepo.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cardRepo.SetActive: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *CardRepo) RecordUse(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_cards SET use_count = use_count + 1, last_used_at = now(), updated_at = now()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("cardRepo.RecordUse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cardRepo.RecordUse: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *CardRepo) RecordOutcome(ctx context.Context, tenantID, id uuid.UUID, success bool) error {
	column := "failure_count"
	if success {
		column = "success_count"
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_cards SET `+column+` = `+column+` + 1, updated_at = now()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("cardRepo.RecordOutcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cardRepo.RecordOutcome: %w", domain.ErrNotFound)
	}

	return nil
}
