package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/veilgate/veilgate/internal/api/v1"
	"github.com/veilgate/veilgate/internal/domain"
)

// ---------------------------------------------------------------------------
// GET /users
// ---------------------------------------------------------------------------

func TestListBotUsers(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{
			botUsers: &mockBotUserRepo{
				listPaginatedFunc: func(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.BotUser, error) {
					assert.Equal(t, tid, tenantID)
					assert.Equal(t, 50, limit)
					assert.Equal(t, 0, offset)
					return []*domain.BotUser{
						{ID: uuid.New(), TenantID: tid, ExternalID: 42, Username: "payer"},
						{ID: uuid.New(), TenantID: tid, ExternalID: 43, Blocked: true},
					}, nil
				},
				countByTenantFunc: func(_ context.Context, tenantID uuid.UUID) (int64, error) {
					assert.Equal(t, tid, tenantID)
					return 2, nil
				},
			},
		}
		v1.RegisterBotUserRoutes(api, store)

		resp := api.GetCtx(reviewerCtx(tid), "/users")

		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Users []*domain.BotUser `json:"users"`
			Total int64             `json:"total"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		require.Len(t, body.Users, 2)
		assert.Equal(t, int64(2), body.Total)
		assert.True(t, body.Users[1].Blocked)
	})
}

// ---------------------------------------------------------------------------
// PUT /users/{id}/blocked
// ---------------------------------------------------------------------------

func TestSetBotUserBlocked(t *testing.T) {
	t.Parallel()

	t.Run("owner_approves_pending_user", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		userID := uuid.New()
		var updated *domain.BotUser
		_, api := humatest.New(t)
		store := &mockDataStore{
			botUsers: &mockBotUserRepo{
				getByIDFunc: func(_ context.Context, tenantID, id uuid.UUID) (*domain.BotUser, error) {
					assert.Equal(t, tid, tenantID)
					return &domain.BotUser{ID: id, TenantID: tenantID, ExternalID: 42, Blocked: true}, nil
				},
				updateFunc: func(_ context.Context, u *domain.BotUser) error {
					updated = u
					return nil
				},
			},
		}
		v1.RegisterBotUserRoutes(api, store)

		resp := api.PutCtx(ownerCtx(tid), "/users/"+userID.String()+"/blocked", map[string]any{
			"blocked": false,
		})

		require.Equal(t, http.StatusOK, resp.Code)
		require.NotNil(t, updated)
		assert.False(t, updated.Blocked)
		assert.Equal(t, userID, updated.ID)
	})

	t.Run("unknown_user_not_found", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{
			botUsers: &mockBotUserRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.BotUser, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterBotUserRoutes(api, store)

		resp := api.PutCtx(ownerCtx(tid), "/users/"+uuid.NewString()+"/blocked", map[string]any{
			"blocked": true,
		})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("reviewer_cannot_block", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{botUsers: &mockBotUserRepo{}}
		v1.RegisterBotUserRoutes(api, store)

		resp := api.PutCtx(reviewerCtx(tid), "/users/"+uuid.NewString()+"/blocked", map[string]any{
			"blocked": true,
		})

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}
