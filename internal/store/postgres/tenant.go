package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilgate/veilgate/internal/domain"
)

type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

// Create inserts the tenant together with its initial flag and config rows in
// one transaction. Either the whole onboarding commits or none of it does.
func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant, flags []*domain.FeatureFlag, configs []*domain.TenantConfig) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO tenants (id, bot_token, name, status, plan, settings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.BotToken, t.Name, t.Status, t.Plan, t.Settings, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenantRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", err)
	}

	for _, f := range flags {
		_, err = tx.Exec(ctx,
			`INSERT INTO feature_flags (tenant_id, key, enabled, config, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			t.ID, f.Key, f.Enabled, f.Config, f.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("tenantRepo.Create: flag %s: %w", f.Key, err)
		}
	}

	for _, c := range configs {
		_, err = tx.Exec(ctx,
			`INSERT INTO tenant_configs (tenant_id, key, value, updated_at)
			 VALUES ($1, $2, $3, $4)`,
			t.ID, c.Key, c.Value, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("tenantRepo.Create: config %s: %w", c.Key, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("tenantRepo.Create: commit: %w", err)
	}

	return nil
}

const tenantColumns = `id, bot_token, name, status, plan, settings, created_at, updated_at`

func scanTenant(row pgx.Row, op string) (*domain.Tenant, error) {
	var t domain.Tenant

	err := row.Scan(&t.ID, &t.BotToken, &t.Name, &t.Status, &t.Plan, &t.Settings, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &t, nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row, "tenantRepo.GetByID")
}

func (r *TenantRepo) GetByBotToken(ctx context.Context, token string) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE bot_token = $1`, token)
	return scanTenant(row, "tenantRepo.GetByBotToken")
}

func (r *TenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET name = $1, plan = $2, settings = $3, updated_at = now()
		 WHERE id = $4`,
		t.Name, t.Plan, t.Settings, t.ID,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListPaginated: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant

		err = rows.Scan(&t.ID, &t.BotToken, &t.Name, &t.Status, &t.Plan, &t.Settings, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("tenantRepo.ListPaginated: scan: %w", err)
		}

		tenants = append(tenants, &t)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListPaginated: rows: %w", err)
	}

	return tenants, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
