package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilgate/veilgate/internal/domain"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, actor_id, actor_role, action, target_tenant_id, resource, resource_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.TargetTenantID,
		entry.Resource, entry.ResourceID, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: %w", err)
	}

	return nil
}

const auditColumns = `id, actor_id, actor_role, action, target_tenant_id, resource, resource_id, details, created_at`

func (r *AuditRepo) collect(rows pgx.Rows, op string) ([]*domain.AuditEntry, error) {
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry

		err := rows.Scan(
			&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &e.TargetTenantID,
			&e.Resource, &e.ResourceID, &e.Details, &e.CreatedAt,
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

func (r *AuditRepo) ListByTenant(ctx context.Context, targetTenantID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_entries
		 WHERE target_tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		targetTenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByTenant: %w", err)
	}

	return r.collect(rows, "auditRepo.ListByTenant")
}

func (r *AuditRepo) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_entries
		 WHERE actor_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		actorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByActor: %w", err)
	}

	return r.collect(rows, "auditRepo.ListByActor")
}
