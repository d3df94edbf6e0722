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

type FlagRepo struct {
	pool *pgxpool.Pool
}

func NewFlagRepo(pool *pgxpool.Pool) *FlagRepo {
	return &FlagRepo{pool: pool}
}

func (r *FlagRepo) GetFlag(ctx context.Context, tenantID uuid.UUID, key string) (*domain.FeatureFlag, error) {
	var f domain.FeatureFlag

	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, key, enabled, config, updated_at
		 FROM feature_flags WHERE tenant_id = $1 AND key = $2`,
		tenantID, key,
	).Scan(&f.TenantID, &f.Key, &f.Enabled, &f.Config, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flagRepo.GetFlag: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("flagRepo.GetFlag: %w", err)
	}

	return &f, nil
}

// SetFlags upserts all given flags in a single transaction so related keys
// change together or not at all.
func (r *FlagRepo) SetFlags(ctx context.Context, tenantID uuid.UUID, flags []*domain.FeatureFlag) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flagRepo.SetFlags: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, f := range flags {
		_, err = tx.Exec(ctx,
			`INSERT INTO feature_flags (tenant_id, key, enabled, config, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (tenant_id, key)
			 DO UPDATE SET enabled = EXCLUDED.enabled, config = EXCLUDED.config, updated_at = now()`,
			tenantID, f.Key, f.Enabled, f.Config,
		)
		if err != nil {
			return fmt.Errorf("flagRepo.SetFlags: %s: %w", f.Key, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("flagRepo.SetFlags: commit: %w", err)
	}

	return nil
}

func (r *FlagRepo) DeleteFlag(ctx context.Context, tenantID uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM feature_flags WHERE tenant_id = $1 AND key = $2`, tenantID, key)
	if err != nil {
		return fmt.Errorf("flagRepo.DeleteFlag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flagRepo.DeleteFlag: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *FlagRepo) ListFlags(ctx context.Context, tenantID uuid.UUID) ([]*domain.FeatureFlag, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tenant_id, key, enabled, config, updated_at
		 FROM feature_flags WHERE tenant_id = $1 ORDER BY key`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("flagRepo.ListFlags: %w", err)
	}
	defer rows.Close()

	var flags []*domain.FeatureFlag
	for rows.Next() {
		var f domain.FeatureFlag

		err = rows.Scan(&f.TenantID, &f.Key, &f.Enabled, &f.Config, &f.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("flagRepo.ListFlags: scan: %w", err)
		}

		flags = append(flags, &f)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("flagRepo.ListFlags: rows: %w", err)
	}

	return flags, nil
}

func (r *FlagRepo) GetConfig(ctx context.Context, tenantID uuid.UUID, key string) (*domain.TenantConfig, error) {
	var c domain.TenantConfig

	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, key, value, updated_at
		 FROM tenant_configs WHERE tenant_id = $1 AND key = $2`,
		tenantID, key,
	).Scan(&c.TenantID, &c.Key, &c.Value, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flagRepo.GetConfig: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("flagRepo.GetConfig: %w", err)
	}

	return &c, nil
}

func (r *FlagRepo) SetConfigs(ctx context.Context, tenantID uuid.UUID, configs []*domain.TenantConfig) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flagRepo.SetConfigs: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range configs {
		_, err = tx.Exec(ctx,
			`INSERT INTO tenant_configs (tenant_id, key, value, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (tenant_id, key)
			 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			tenantID, c.Key, c.Value,
		)
		if err != nil {
			return fmt.Errorf("flagRepo.SetConfigs: %s: %w", c.Key, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("flagRepo.SetConfigs: commit: %w", err)
	}

	return nil
}

func (r *FlagRepo) DeleteConfig(ctx context.Context, tenantID uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tenant_configs WHERE tenant_id = $1 AND key = $2`, tenantID, key)
	if err != nil {
		return fmt.Errorf("flagRepo.DeleteConfig: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flagRepo.DeleteConfig: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *FlagRepo) ListConfigs(ctx context.Context, tenantID uuid.UUID) ([]*domain.TenantConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tenant_id, key, value, updated_at
		 FROM tenant_configs WHERE tenant_id = $1 ORDER BY key`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("flagRepo.ListConfigs: %w", err)
	}
	defer rows.Close()

	var configs []*domain.TenantConfig
	for rows.Next() {
		var c domain.TenantConfig

		err = rows.Scan(&c.TenantID, &c.Key, &c.Value, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("flagRepo.ListConfigs: scan: %w", err)
		}

		configs = append(configs, &c)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("flagRepo.ListConfigs: rows: %w", err)
	}

	return configs, nil
}
