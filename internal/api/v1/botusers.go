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

type ListBotUsersInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListBotUsersOutput struct {
	Body struct {
		Users []*domain.BotUser `json:"users"`
		Total int64             `json:"total"`
	}
}

type SetBotUserBlockedInput struct {
	ID   uuid.UUID `path:"id" doc:"Bot user ID"`
	Body struct {
		Blocked bool `json:"blocked" doc:"true blocks the user, false approves or unblocks them"`
	}
}

type SetBotUserBlockedOutput struct {
	Body *domain.BotUser
}

// RegisterBotUserRoutes wires the tenant's end-user roster. Listing is open to
// any tenant role; blocking and approving is the owner's call. With signup
// auto-approval off, new bot users arrive blocked and the unblock here is
// what admits them.
func RegisterBotUserRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-bot-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List the tenant's bot users",
		Tags:        []string{"BotUsers"},
	}, func(ctx context.Context, input *ListBotUsersInput) (*ListBotUsersOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		users, err := store.BotUsers().ListPaginated(ctx, tenantID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}
		total, err := store.BotUsers().CountByTenant(ctx, tenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count users", err)
		}

		out := &ListBotUsersOutput{}
		out.Body.Users = users
		out.Body.Total = total
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-bot-user-blocked",
		Method:      http.MethodPut,
		Path:        "/users/{id}/blocked",
		Summary:     "Block or approve a bot user",
		Tags:        []string{"BotUsers"},
	}, func(ctx context.Context, input *SetBotUserBlockedInput) (*SetBotUserBlockedOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}

		user, err := store.BotUsers().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}

		user.Blocked = input.Body.Blocked
		user.UpdatedAt = time.Now()
		if err := store.BotUsers().Update(ctx, user); err != nil {
			return nil, huma.Error500InternalServerError("failed to update user", err)
		}

		return &SetBotUserBlockedOutput{Body: user}, nil
	})
}
