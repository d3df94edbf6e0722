package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/server/middleware"
)

//nolint:gosec // G117: credential DTO, fields are request inputs not secrets at rest
type RegisterInput struct {
	Body struct {
		TenantID uuid.UUID `json:"tenant_id" doc:"Tenant to register the panel user under"`
		Email    string    `json:"email" format:"email" maxLength:"255" doc:"User email address"`
		Password string    `json:"password" minLength:"8" maxLength:"128" doc:"User password"`
		Name     string    `json:"name" minLength:"1" maxLength:"255" doc:"User display name"`
	}
}

type RegisterOutput struct {
	Body struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Name  string    `json:"name"`
		Role  string    `json:"role"`
	}
}

//nolint:gosec // G117: credential DTO, fields are request inputs not secrets at rest
type LoginInput struct {
	Body struct {
		TenantID uuid.UUID `json:"tenant_id" doc:"Tenant the user belongs to"`
		Email    string    `json:"email" format:"email" maxLength:"255" doc:"User email address"`
		Password string    `json:"password" minLength:"1" maxLength:"128" doc:"User password"`
	}
}

type LoginOutput struct {
	Body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token from login"`
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken string `json:"access_token"`
	}
}

type CreateAPIKeyInput struct {
	Body struct {
		Name      string     `json:"name" minLength:"1" maxLength:"255" doc:"Key label"`
		ExpiresAt *time.Time `json:"expires_at,omitempty" doc:"Optional expiry; omit for a non-expiring key"`
	}
}

type CreateAPIKeyOutput struct {
	Body struct {
		Key    string         `json:"key" doc:"Raw API key, shown only once"`
		APIKey *domain.APIKey `json:"api_key"`
	}
}

// RegisterAuthRoutes wires login/registration. These run before the auth
// middleware, so the tenant comes from the request body and is verified
// against the user row inside the auth service.
func RegisterAuthRoutes(api huma.API, svc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new panel user",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
		user, err := svc.Register(ctx, input.Body.TenantID, input.Body.Email, input.Body.Password, input.Body.Name)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("email already registered")
			}
			return nil, huma.Error500InternalServerError("failed to register user", err)
		}

		out := &RegisterOutput{}
		out.Body.ID = user.ID
		out.Body.Email = user.Email
		out.Body.Name = user.Name
		out.Body.Role = user.Role
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in and receive a token pair",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		access, refresh, err := svc.Login(ctx, input.Body.TenantID, input.Body.Email, input.Body.Password)
		if err != nil {
			// Wrong tenant, unknown email, and bad password all collapse to
			// the same response.
			return nil, huma.Error401Unauthorized("invalid credentials")
		}

		out := &LoginOutput{}
		out.Body.AccessToken = access
		out.Body.RefreshToken = refresh
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Exchange a refresh token for a new access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		access, err := svc.RefreshToken(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = access
		return out, nil
	})
}

// RegisterAPIKeyRoutes wires API key minting. These run behind the auth
// middleware; the key is bound to the caller's tenant and user from context.
func RegisterAPIKeyRoutes(api huma.API, svc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-api-key",
		Method:      http.MethodPost,
		Path:        "/apikeys",
		Summary:     "Mint an API key for the current user",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		raw, key, err := svc.GenerateAPIKey(ctx, tenantID, userID, input.Body.Name, input.Body.ExpiresAt)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create api key", err)
		}

		out := &CreateAPIKeyOutput{}
		out.Body.Key = raw
		out.Body.APIKey = key
		return out, nil
	})
}
