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

type BotUserRepo struct {
	pool *pgxpool.Pool
}

func NewBotUserRepo(pool *pgxpool.Pool) *BotUserRepo {
	return &BotUserRepo{pool: pool}
}

const botUserColumns = `id, tenant_id, external_id, username, balance, blocked, created_at, updated_at`

func (r *BotUserRepo) Create(ctx context.Context, u *domain.BotUser) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bot_users (id, tenant_id, external_id, username, balance, blocked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.TenantID, u.ExternalID, u.Username, u.Balance, u.Blocked, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("botUserRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("botUserRepo.Create: %w", err)
	}

	return nil
}

func scanBotUser(row pgx.Row, op string) (*domain.BotUser, error) {
	var u domain.BotUser

	err := row.Scan(&u.ID, &u.TenantID, &u.ExternalID, &u.Username, &u.Balance, &u.Blocked, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

func (r *BotUserRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.BotUser, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+botUserColumns+` FROM bot_users WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanBotUser(row, "botUserRepo.GetByID")
}

func (r *BotUserRepo) GetByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*domain.BotUser, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+botUserColumns+` FROM bot_users WHERE tenant_id = $1 AND external_id = $2`,
		tenantID, externalID)
	return scanBotUser(row, "botUserRepo.GetByExternalID")
}

func (r *BotUserRepo) Update(ctx context.Context, u *domain.BotUser) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bot_users SET username = $1, blocked = $2, updated_at = now()
		 WHERE tenant_id = $3 AND id = $4`,
		u.Username, u.Blocked, u.TenantID, u.ID,
	)
	if err != nil {
		return fmt.Errorf("botUserRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("botUserRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *BotUserRepo) ListPaginated(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.BotUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+botUserColumns+` FROM bot_users WHERE tenant_id = $1
		 ORDER BY created_at
		 LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("botUserRepo.ListPaginated: %w", err)
	}
	defer rows.Close()

	var users []*domain.BotUser
	for rows.Next() {
		var u domain.BotUser

		err = rows.Scan(&u.ID, &u.TenantID, &u.ExternalID, &u.Username, &u.Balance, &u.Blocked, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("botUserRepo.ListPaginated: scan: %w", err)
		}

		users = append(users, &u)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("botUserRepo.ListPaginated: rows: %w", err)
	}

	return users, nil
}

func (r *BotUserRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64

	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM bot_users WHERE tenant_id = $1`, tenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("botUserRepo.CountByTenant: %w", err)
	}

	return n, nil
}
