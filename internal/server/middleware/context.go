package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextKeyTenantID contextKey = "tenant_id"
	ContextKeyUserID   contextKey = "user_id"
	ContextKeyUserRole contextKey = "role"
)

// WithActor binds the authenticated operator and their tenant to the context.
// Handlers and repositories downstream read the tenant from here, never from
// request payloads.
func WithActor(ctx context.Context, tenantID, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyTenantID, tenantID)
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, role)
	return ctx
}

func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyTenantID).(uuid.UUID)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(string)
	return v, ok
}
