package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeTenants struct {
	domain.TenantRepository

	byToken map[string]*domain.Tenant
}

func (f *fakeTenants) GetByBotToken(_ context.Context, token string) (*domain.Tenant, error) {
	t, ok := f.byToken[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenants) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	for _, t := range f.byToken {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeBotUsers struct {
	domain.BotUserRepository

	byExternal map[int64]*domain.BotUser
	created    int
}

func (f *fakeBotUsers) GetByExternalID(_ context.Context, tenantID uuid.UUID, externalID int64) (*domain.BotUser, error) {
	u, ok := f.byExternal[externalID]
	if !ok || u.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeBotUsers) GetByID(_ context.Context, tenantID, id uuid.UUID) (*domain.BotUser, error) {
	for _, u := range f.byExternal {
		if u.ID == id && u.TenantID == tenantID {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBotUsers) Create(_ context.Context, u *domain.BotUser) error {
	if _, ok := f.byExternal[u.ExternalID]; ok {
		return domain.ErrConflict
	}
	f.byExternal[u.ExternalID] = u
	f.created++
	return nil
}

type fakeWallet struct {
	balance int64
	err     error
}

func (f *fakeWallet) Balance(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return f.balance, f.err
}

type fakeFlags struct {
	disabled map[string]bool
}

func (f *fakeFlags) IsEnabled(_ context.Context, _ uuid.UUID, key string) (bool, error) {
	return !f.disabled[key], nil
}

type fakeSubmitter struct {
	receipt    *domain.Receipt
	err        error
	gatewayErr error
	lastCode   string
	lastAmt    int64
}

func (f *fakeSubmitter) SubmitReceipt(_ context.Context, tenantID, userID uuid.UUID, _ *uuid.UUID, amount int64, trackingCode string) (*domain.Receipt, error) {
	f.lastAmt = amount
	f.lastCode = trackingCode
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &domain.Receipt{ID: uuid.New(), TenantID: tenantID, UserID: userID, Amount: amount, TrackingCode: trackingCode, Status: domain.ReceiptPending}, nil
}

func (f *fakeSubmitter) StartGatewayPayment(_ context.Context, tenantID, userID uuid.UUID, amount int64, _ string) (*domain.Receipt, string, error) {
	f.lastAmt = amount
	if f.gatewayErr != nil {
		return nil, "", f.gatewayErr
	}
	r := &domain.Receipt{ID: uuid.New(), TenantID: tenantID, UserID: userID, Amount: amount, Status: domain.ReceiptPending}
	return r, "https://gateway.test/pay/AUTH-1", nil
}

type fakeSelector struct {
	card *domain.PaymentCard
	err  error
}

func (f *fakeSelector) Next(_ context.Context, _ uuid.UUID) (*domain.PaymentCard, error) {
	return f.card, f.err
}

type fakeAPI struct {
	tokens []string
	chats  []int64
	texts  []string
	err    error
}

func (f *fakeAPI) SendMessage(_ context.Context, botToken string, chatID int64, text string) error {
	f.tokens = append(f.tokens, botToken)
	f.chats = append(f.chats, chatID)
	f.texts = append(f.texts, text)
	return f.err
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

const testToken = "123456:test-token"

type webhookEnv struct {
	handler  *WebhookHandler
	tenants  *fakeTenants
	botUsers *fakeBotUsers
	wallet   *fakeWallet
	receipts *fakeSubmitter
	cards    *fakeSelector
	flags    *fakeFlags
	api      *fakeAPI
	tenant   *domain.Tenant
}

func newWebhookEnv() *webhookEnv {
	tenant := &domain.Tenant{
		ID:       uuid.New(),
		BotToken: testToken,
		Name:     "Acme VPN",
		Status:   domain.TenantActive,
	}
	env := &webhookEnv{
		tenants:  &fakeTenants{byToken: map[string]*domain.Tenant{testToken: tenant}},
		botUsers: &fakeBotUsers{byExternal: make(map[int64]*domain.BotUser)},
		wallet:   &fakeWallet{balance: 1500},
		receipts: &fakeSubmitter{},
		cards: &fakeSelector{card: &domain.PaymentCard{
			ID: uuid.New(), Number: "6037-0000-1111-2222", HolderName: "J Doe", BankName: "Melli",
		}},
		flags:  &fakeFlags{disabled: make(map[string]bool)},
		api:    &fakeAPI{},
		tenant: tenant,
	}
	env.handler = NewWebhookHandler(env.tenants, env.botUsers, env.wallet, env.receipts, env.cards, env.flags, env.api)
	return env
}

func (e *webhookEnv) post(t *testing.T, token, text string) *httptest.ResponseRecorder {
	t.Helper()

	body := fmt.Sprintf(`{"update_id":1,"message":{"message_id":10,"from":{"id":42,"username":"payer"},"chat":{"id":42},"text":%q}}`, text)
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+token, strings.NewReader(body))
	rec := httptest.NewRecorder()

	router := chi.NewRouter()
	router.Post("/webhook/{botToken}", e.handler.ServeHTTP)
	router.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWebhookTenantResolution(t *testing.T) {
	t.Parallel()

	t.Run("unknown_token_is_404", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		rec := env.post(t, "999:no-such-bot", "/start")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, env.api.texts)
	})

	t.Run("suspended_tenant_is_403", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.tenant.Status = domain.TenantSuspended

		rec := env.post(t, testToken, "/start")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, env.api.texts)
	})

	t.Run("active_tenant_is_200", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		rec := env.post(t, testToken, "/start")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed_body_is_400", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		req := httptest.NewRequest(http.MethodPost, "/webhook/"+testToken, strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		router := chi.NewRouter()
		router.Post("/webhook/{botToken}", env.handler.ServeHTTP)
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhookUserProvisioning(t *testing.T) {
	t.Parallel()

	t.Run("first_contact_creates_user", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/start")

		require.Equal(t, 1, env.botUsers.created)
		u := env.botUsers.byExternal[42]
		assert.Equal(t, env.tenant.ID, u.TenantID)
		assert.Equal(t, "payer", u.Username)
	})

	t.Run("repeat_contact_reuses_user", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/start")
		env.post(t, testToken, "/balance")

		assert.Equal(t, 1, env.botUsers.created)
	})

	t.Run("blocked_user_gets_no_reply", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.botUsers.byExternal[42] = &domain.BotUser{
			ID: uuid.New(), TenantID: env.tenant.ID, ExternalID: 42, Blocked: true,
		}

		rec := env.post(t, testToken, "/balance")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, env.api.texts)
	})

	t.Run("auto_approve_off_blocks_new_signups", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.flags.disabled[flags.KeyAutoApprove] = true

		rec := env.post(t, testToken, "/start")
		assert.Equal(t, http.StatusOK, rec.Code)

		require.Equal(t, 1, env.botUsers.created)
		assert.True(t, env.botUsers.byExternal[42].Blocked, "new users wait for operator approval")
		assert.Empty(t, env.api.texts)
	})
}

func TestWebhookCommands(t *testing.T) {
	t.Parallel()

	t.Run("start_welcomes_with_tenant_name", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/start")

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "Acme VPN")
		assert.Equal(t, []string{testToken}, env.api.tokens, "reply goes through the tenant's own bot")
		assert.Equal(t, []int64{42}, env.api.chats)
	})

	t.Run("balance", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/balance")

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "1500")
	})

	t.Run("balance_wallet_disabled", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.wallet.err = domain.ErrForbidden

		env.post(t, testToken, "/balance")

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "not available")
	})

	t.Run("card_shows_selected_card", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/card")

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "6037-0000-1111-2222")
		assert.Contains(t, env.api.texts[0], "J Doe")
	})

	t.Run("card_unavailable_degrades_gracefully", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.cards.card = nil
		env.cards.err = domain.ErrNoCardAvailable

		rec := env.post(t, testToken, "/card")
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "unavailable")
	})

	t.Run("receipt_submission", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/receipt 5000 bank-777")

		assert.Equal(t, int64(5000), env.receipts.lastAmt)
		assert.Equal(t, "bank-777", env.receipts.lastCode)
		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "queued for review")
	})

	t.Run("receipt_bad_args", func(t *testing.T) {
		t.Parallel()

		for _, args := range []string{"", "abc bank-777", "-5 bank-777", "5000"} {
			env := newWebhookEnv()
			env.post(t, testToken, strings.TrimSpace("/receipt "+args))

			require.Len(t, env.api.texts, 1)
			assert.Contains(t, env.api.texts[0], "Usage", "args=%q", args)
		}
	})

	t.Run("receipt_duplicate_code", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.receipts.err = domain.ErrConflict

		env.post(t, testToken, "/receipt 5000 bank-777")
		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "already submitted")
	})

	t.Run("pay_returns_gateway_link", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "/pay 2500")

		assert.Equal(t, int64(2500), env.receipts.lastAmt)
		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "https://gateway.test/pay/AUTH-1")
	})

	t.Run("pay_bad_args", func(t *testing.T) {
		t.Parallel()

		for _, args := range []string{"", "abc", "-5"} {
			env := newWebhookEnv()
			env.post(t, testToken, strings.TrimSpace("/pay "+args))

			require.Len(t, env.api.texts, 1)
			assert.Contains(t, env.api.texts[0], "Usage", "args=%q", args)
		}
	})

	t.Run("pay_disabled", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.receipts.gatewayErr = domain.ErrForbidden

		env.post(t, testToken, "/pay 2500")
		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "not available")
	})

	t.Run("unknown_command_shows_help", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.post(t, testToken, "hello there")

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "Commands:")
	})
}

func TestNotifier(t *testing.T) {
	t.Parallel()

	newReceipt := func(tenantID, userID uuid.UUID) *domain.Receipt {
		now := time.Now()
		return &domain.Receipt{
			ID: uuid.New(), TenantID: tenantID, UserID: userID,
			Amount: 5000, TrackingCode: "bank-777",
			Status: domain.ReceiptApproved, ReviewedAt: &now,
		}
	}

	t.Run("approved_message_includes_tracking_code", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		userID := uuid.New()
		env.botUsers.byExternal[42] = &domain.BotUser{ID: userID, TenantID: env.tenant.ID, ExternalID: 42}

		n := NewNotifier(env.api, env.tenants, env.botUsers)
		err := n.PaymentApproved(context.Background(), newReceipt(env.tenant.ID, userID))
		require.NoError(t, err)

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "approved")
		assert.Contains(t, env.api.texts[0], "bank-777")
		assert.Equal(t, []string{testToken}, env.api.tokens)
		assert.Equal(t, []int64{42}, env.api.chats)
	})

	t.Run("rejected_message_includes_reason", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		userID := uuid.New()
		env.botUsers.byExternal[42] = &domain.BotUser{ID: userID, TenantID: env.tenant.ID, ExternalID: 42}

		r := newReceipt(env.tenant.ID, userID)
		r.Status = domain.ReceiptRejected
		r.ReviewNote = "amount mismatch"

		n := NewNotifier(env.api, env.tenants, env.botUsers)
		err := n.PaymentRejected(context.Background(), r)
		require.NoError(t, err)

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "rejected")
		assert.Contains(t, env.api.texts[0], "amount mismatch")
	})

	t.Run("unknown_user_errors", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		n := NewNotifier(env.api, env.tenants, env.botUsers)

		err := n.PaymentApproved(context.Background(), newReceipt(env.tenant.ID, uuid.New()))
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, env.api.texts)
	})

	t.Run("send_failure_propagates", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.api.err = errors.New("blocked by user")
		userID := uuid.New()
		env.botUsers.byExternal[42] = &domain.BotUser{ID: userID, TenantID: env.tenant.ID, ExternalID: 42}

		n := NewNotifier(env.api, env.tenants, env.botUsers)
		err := n.PaymentApproved(context.Background(), newReceipt(env.tenant.ID, userID))
		require.Error(t, err)
	})
}

func TestProvisioner(t *testing.T) {
	t.Parallel()

	t.Run("delivers_subscription_with_balance", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		userID := uuid.New()
		env.botUsers.byExternal[42] = &domain.BotUser{ID: userID, TenantID: env.tenant.ID, ExternalID: 42}
		env.wallet.balance = 9000

		p := NewProvisioner(env.api, env.tenants, env.botUsers, env.wallet)
		err := p.Provision(context.Background(), &domain.Receipt{
			ID: uuid.New(), TenantID: env.tenant.ID, UserID: userID,
			Amount: 5000, TrackingCode: "bank-777", Status: domain.ReceiptApproved,
		})
		require.NoError(t, err)

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "active")
		assert.Contains(t, env.api.texts[0], "bank-777")
		assert.Contains(t, env.api.texts[0], "9000")
		assert.Equal(t, []int64{42}, env.api.chats)
	})

	t.Run("wallet_disabled_omits_balance", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.wallet.err = domain.ErrForbidden
		userID := uuid.New()
		env.botUsers.byExternal[42] = &domain.BotUser{ID: userID, TenantID: env.tenant.ID, ExternalID: 42}

		p := NewProvisioner(env.api, env.tenants, env.botUsers, env.wallet)
		err := p.Provision(context.Background(), &domain.Receipt{
			ID: uuid.New(), TenantID: env.tenant.ID, UserID: userID,
			Amount: 5000, TrackingCode: "bank-777", Status: domain.ReceiptApproved,
		})
		require.NoError(t, err, "a disabled wallet must not hold up delivery")

		require.Len(t, env.api.texts, 1)
		assert.Contains(t, env.api.texts[0], "bank-777")
		assert.NotContains(t, env.api.texts[0], "Wallet balance")
	})

	t.Run("send_failure_propagates", func(t *testing.T) {
		t.Parallel()

		env := newWebhookEnv()
		env.api.err = errors.New("blocked by user")
		userID := uuid.New()
		env.botUsers.byExternal[42] = &domain.BotUser{ID: userID, TenantID: env.tenant.ID, ExternalID: 42}

		p := NewProvisioner(env.api, env.tenants, env.botUsers, env.wallet)
		err := p.Provision(context.Background(), &domain.Receipt{
			ID: uuid.New(), TenantID: env.tenant.ID, UserID: userID,
			Amount: 5000, TrackingCode: "bank-777", Status: domain.ReceiptApproved,
		})
		require.Error(t, err)
	})
}
