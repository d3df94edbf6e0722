package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tid"`
	UserID   string `json:"uid"`
	Role     string `json:"role"`
}

// Auth authenticates operator requests with a Bearer JWT or an X-API-Key
// header. Either way the tenant comes out of the credential itself: the JWT
// carries it in signed claims, the API key row stores it. After binding, the
// tenant's status is checked so a suspended tenant's operators lose access
// immediately, with tokens still formally valid.
func Auth(jwtSecret string, userRepo domain.UserRepository, tenantRepo domain.TenantRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var bound context.Context
			var ok bool

			if tok := extractBearer(r); tok != "" {
				bound, ok = authenticateJWT(ctx, tok, jwtSecret)
			}
			if !ok {
				if key := r.Header.Get("X-API-Key"); key != "" {
					bound, ok = authenticateAPIKey(ctx, key, userRepo)
				}
			}
			if !ok {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
				return
			}

			tenantID, _ := TenantIDFromContext(bound)
			role, _ := RoleFromContext(bound)

			// Platform admins are not bound to a live tenant row.
			if role != RoleAdmin {
				tenant, err := tenantRepo.GetByID(bound, tenantID)
				if err != nil {
					http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
					return
				}
				if !tenant.Active() {
					http.Error(w, `{"title":"Forbidden","status":403,"detail":"tenant suspended"}`, http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(bound))
		})
	}
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ctx, false
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return ctx, false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, false
	}

	return WithActor(ctx, tenantID, userID, claims.Role), true
}

func authenticateAPIKey(ctx context.Context, rawKey string, userRepo domain.UserRepository) (context.Context, bool) {
	if len(rawKey) < 8 {
		return ctx, false
	}
	prefix := rawKey[:8]

	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])

	// The prefix lookup is cross-tenant: a raw key carries no tenant hint, the
	// key row it resolves to is what binds the request to a tenant.
	apiKey, err := userRepo.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return ctx, false
	}

	if apiKey.KeyHash != keyHash {
		return ctx, false
	}

	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return ctx, false
	}

	// The key owner's current role applies, not a role frozen at mint time.
	user, err := userRepo.GetByID(ctx, apiKey.TenantID, apiKey.UserID)
	if err != nil {
		return ctx, false
	}

	// Update last used timestamp (fire and forget).
	if updateErr := userRepo.UpdateAPIKeyLastUsed(ctx, apiKey.ID); updateErr != nil {
		log.Warn().Err(updateErr).Str("api_key_id", apiKey.ID.String()).Msg("auth: failed to update api key last_used_at")
	}

	return WithActor(ctx, apiKey.TenantID, apiKey.UserID, user.Role), true
}
