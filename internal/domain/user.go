package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an operator account: a platform admin or a tenant's owner/reviewer.
// Platform admins carry the "admin" role and are the only accounts allowed on
// cross-tenant routes.
type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	PasswordHash string // argon2id
	Name         string
	Role         string // "admin", "owner", or "reviewer"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type APIKey struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Name       string
	KeyHash    string     // SHA-256
	Prefix     string     // first 8 chars for identification
	LastUsedAt *time.Time // nullable
	ExpiresAt  *time.Time // nullable
	CreatedAt  time.Time
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, tenantID uuid.UUID) ([]*User, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	ListAPIKeys(ctx context.Context, tenantID, userID uuid.UUID) ([]*APIKey, error)
	DeleteAPIKey(ctx context.Context, tenantID, id uuid.UUID) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
