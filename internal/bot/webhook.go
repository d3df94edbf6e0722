package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
)

// WalletReader reads a bot user's balance.
type WalletReader interface {
	Balance(ctx context.Context, tenantID, userID uuid.UUID) (int64, error)
}

// ReceiptSubmitter records a card-to-card payment claim or opens a gateway
// payment session.
type ReceiptSubmitter interface {
	SubmitReceipt(ctx context.Context, tenantID, userID uuid.UUID, cardID *uuid.UUID, amount int64, trackingCode string) (*domain.Receipt, error)
	StartGatewayPayment(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*domain.Receipt, string, error)
}

// CardSelector picks the next payment card for a tenant.
type CardSelector interface {
	Next(ctx context.Context, tenantID uuid.UUID) (*domain.PaymentCard, error)
}

// FlagChecker is the resolver surface the handler needs.
type FlagChecker interface {
	IsEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
}

// WebhookHandler is the bot ingress. The bot token in the URL path is the
// tenant credential: every update is bound to exactly the tenant that owns the
// token before any data access happens.
type WebhookHandler struct {
	tenants  domain.TenantRepository
	botUsers domain.BotUserRepository
	wallet   WalletReader
	receipts ReceiptSubmitter
	cards    CardSelector
	flags    FlagChecker
	api      TelegramAPI
}

func NewWebhookHandler(tenants domain.TenantRepository, botUsers domain.BotUserRepository, wallet WalletReader, receipts ReceiptSubmitter, cards CardSelector, checker FlagChecker, api TelegramAPI) *WebhookHandler {
	return &WebhookHandler{
		tenants:  tenants,
		botUsers: botUsers,
		wallet:   wallet,
		receipts: receipts,
		cards:    cards,
		flags:    checker,
		api:      api,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := chi.URLParam(r, "botToken")
	tenant, err := h.tenants.GetByBotToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		// Unknown token and suspended tenant are distinct signals: an unknown
		// token is junk traffic, a suspended tenant tells the platform to stop
		// delivering updates.
		http.Error(w, "unknown bot", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("webhook: tenant lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !tenant.Active() {
		http.Error(w, "tenant suspended", http.StatusForbidden)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	// Telegram redelivers on non-200; processing failures are logged and
	// acknowledged rather than retried forever.
	if update.Message != nil && update.Message.From != nil {
		if err := h.handleMessage(ctx, tenant, update.Message); err != nil {
			log.Warn().Err(err).
				Str("tenant_id", tenant.ID.String()).
				Int64("external_id", update.Message.From.ID).
				Msg("webhook: update handling failed")
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleMessage(ctx context.Context, tenant *domain.Tenant, msg *Message) error {
	user, err := h.ensureUser(ctx, tenant.ID, msg.From)
	if err != nil {
		return err
	}
	if user.Blocked {
		return nil
	}

	reply := h.dispatch(ctx, tenant, user, strings.TrimSpace(msg.Text))
	if reply == "" {
		return nil
	}

	return h.api.SendMessage(ctx, tenant.BotToken, msg.Chat.ID, reply)
}

// ensureUser resolves the sender within the tenant, creating the row on first
// contact. The same person under another tenant's bot is a separate row. With
// signup auto-approval switched off, new users start blocked until an
// operator unblocks them.
func (h *WebhookHandler) ensureUser(ctx context.Context, tenantID uuid.UUID, from *TGUser) (*domain.BotUser, error) {
	user, err := h.botUsers.GetByExternalID(ctx, tenantID, from.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	autoApprove, err := h.flags.IsEnabled(ctx, tenantID, flags.KeyAutoApprove)
	if err != nil {
		return nil, err
	}

	user = &domain.BotUser{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ExternalID: from.ID,
		Username:   from.Username,
		Blocked:    !autoApprove,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := h.botUsers.Create(ctx, user); err != nil {
		// Lost a create race with a concurrent update from the same sender.
		if errors.Is(err, domain.ErrConflict) {
			return h.botUsers.GetByExternalID(ctx, tenantID, from.ID)
		}
		return nil, err
	}

	return user, nil
}

func (h *WebhookHandler) dispatch(ctx context.Context, tenant *domain.Tenant, user *domain.BotUser, text string) string {
	cmd, args, _ := strings.Cut(text, " ")

	switch cmd {
	case "/start":
		return fmt.Sprintf("Welcome to %s! Use /balance, /card or /receipt to manage payments.", tenant.Name)

	case "/balance":
		balance, err := h.wallet.Balance(ctx, tenant.ID, user.ID)
		if errors.Is(err, domain.ErrForbidden) {
			return "Wallet is not available."
		}
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("webhook: balance lookup failed")
			return "Something went wrong, try again later."
		}
		return fmt.Sprintf("Your balance: %d", balance)

	case "/card":
		card, err := h.cards.Next(ctx, tenant.ID)
		if errors.Is(err, domain.ErrNoCardAvailable) {
			return "Card payments are temporarily unavailable. Try another payment method."
		}
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("webhook: card selection failed")
			return "Something went wrong, try again later."
		}
		return fmt.Sprintf("Transfer to:\n%s\n%s (%s)\nThen send: /receipt <amount> <tracking code>", card.Number, card.HolderName, card.BankName)

	case "/receipt":
		return h.submitReceipt(ctx, tenant, user, args)

	case "/pay":
		return h.startGatewayPayment(ctx, tenant, user, args)

	default:
		return "Commands: /balance, /card, /receipt <amount> <tracking code>, /pay <amount>"
	}
}

func (h *WebhookHandler) submitReceipt(ctx context.Context, tenant *domain.Tenant, user *domain.BotUser, args string) string {
	amountStr, code, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok || code == "" {
		return "Usage: /receipt <amount> <tracking code>"
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil || amount <= 0 {
		return "Usage: /receipt <amount> <tracking code>"
	}

	receipt, err := h.receipts.SubmitReceipt(ctx, tenant.ID, user.ID, nil, amount, strings.TrimSpace(code))
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "This tracking code was already submitted."
	case errors.Is(err, domain.ErrForbidden):
		return "Card payments are not available right now."
	case err != nil:
		log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("webhook: receipt submission failed")
		return "Something went wrong, try again later."
	}

	return fmt.Sprintf("Receipt %s received and queued for review. You will be notified.", receipt.TrackingCode)
}

func (h *WebhookHandler) startGatewayPayment(ctx context.Context, tenant *domain.Tenant, user *domain.BotUser, args string) string {
	amount, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || amount <= 0 {
		return "Usage: /pay <amount>"
	}

	_, payURL, err := h.receipts.StartGatewayPayment(ctx, tenant.ID, user.ID, amount, "wallet top-up")
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "Online payments are not available right now."
	case err != nil:
		log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("webhook: gateway payment start failed")
		return "Something went wrong, try again later."
	}

	return fmt.Sprintf("Pay here: %s\nYour wallet is credited as soon as the payment is confirmed.", payURL)
}
