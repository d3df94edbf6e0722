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
	"github.com/veilgate/veilgate/internal/flags"
)

// ---------------------------------------------------------------------------
// GET /flags
// ---------------------------------------------------------------------------

func TestListFlags(t *testing.T) {
	t.Parallel()

	t.Run("happy_path_resolves_all_keys", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		svc := &mockFlagService{
			isEnabledFunc: func(_ context.Context, tenantID uuid.UUID, key string) (bool, error) {
				assert.Equal(t, tid, tenantID)
				return key == flags.KeyCardToCard, nil
			},
			flagConfigFunc: func(_ context.Context, _ uuid.UUID, _ string) (map[string]any, error) {
				return nil, nil
			},
			valueFunc: func(_ context.Context, _ uuid.UUID, key string) (map[string]any, error) {
				if key == flags.CfgCardRotation {
					return map[string]any{"strategy": "weighted"}, nil
				}
				return map[string]any{}, nil
			},
		}
		v1.RegisterFlagRoutes(api, svc)

		resp := api.GetCtx(reviewerCtx(tid), "/flags")

		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Flags   []v1.EffectiveFlag   `json:"flags"`
			Configs []v1.EffectiveConfig `json:"configs"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Len(t, body.Flags, len(flags.FlagKeys()))
		assert.Len(t, body.Configs, len(flags.ConfigKeys()))

		byKey := map[string]v1.EffectiveFlag{}
		for _, f := range body.Flags {
			byKey[f.Key] = f
		}
		assert.True(t, byKey[flags.KeyCardToCard].Enabled)
		assert.False(t, byKey[flags.KeyGatewayPayments].Enabled)
	})

	t.Run("missing_tenant_context", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterFlagRoutes(api, &mockFlagService{})

		resp := api.GetCtx(context.Background(), "/flags")

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// PUT /flags
// ---------------------------------------------------------------------------

func TestSetFlags(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)

		var got []*domain.FeatureFlag
		svc := &mockFlagService{
			setFlagsFunc: func(_ context.Context, tenantID uuid.UUID, toSet []*domain.FeatureFlag) error {
				assert.Equal(t, tid, tenantID)
				got = toSet
				return nil
			},
		}
		v1.RegisterFlagRoutes(api, svc)

		resp := api.PutCtx(ownerCtx(tid), "/flags", map[string]any{
			"flags": []map[string]any{
				{"key": flags.KeyGatewayPayments, "enabled": true},
			},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		require.Len(t, got, 1)
		assert.Equal(t, flags.KeyGatewayPayments, got[0].Key)
		assert.True(t, got[0].Enabled)
		assert.Equal(t, tid, got[0].TenantID)
	})

	t.Run("unknown_key_rejected", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		v1.RegisterFlagRoutes(api, &mockFlagService{})

		resp := api.PutCtx(ownerCtx(tid), "/flags", map[string]any{
			"flags": []map[string]any{
				{"key": "no.such.flag", "enabled": true},
			},
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("reviewer_forbidden", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		v1.RegisterFlagRoutes(api, &mockFlagService{})

		resp := api.PutCtx(reviewerCtx(tid), "/flags", map[string]any{
			"flags": []map[string]any{
				{"key": flags.KeyWallet, "enabled": false},
			},
		})

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// PUT /configs
// ---------------------------------------------------------------------------

func TestSetConfigs(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)

		var got []*domain.TenantConfig
		svc := &mockFlagService{
			setConfigsFunc: func(_ context.Context, _ uuid.UUID, toSet []*domain.TenantConfig) error {
				got = toSet
				return nil
			},
		}
		v1.RegisterFlagRoutes(api, svc)

		resp := api.PutCtx(ownerCtx(tid), "/configs", map[string]any{
			"configs": []map[string]any{
				{"key": flags.CfgCardRotation, "value": map[string]any{"strategy": "random"}},
			},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		require.Len(t, got, 1)
		assert.Equal(t, flags.CfgCardRotation, got[0].Key)
		assert.Equal(t, "random", got[0].Value["strategy"])
	})

	t.Run("unknown_key_rejected", func(t *testing.T) {
		t.Parallel()

		tid := uuid.New()
		_, api := humatest.New(t)
		v1.RegisterFlagRoutes(api, &mockFlagService{})

		resp := api.PutCtx(ownerCtx(tid), "/configs", map[string]any{
			"configs": []map[string]any{
				{"key": "no.such.config", "value": map[string]any{}},
			},
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}
