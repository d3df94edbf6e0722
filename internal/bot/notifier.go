package bot

import (
	"context"
	"fmt"

	"github.com/veilgate/veilgate/internal/domain"
)

// Notifier delivers payment outcomes to bot users through the tenant's own
// bot. It satisfies the payment service's Notifier interface.
type Notifier struct {
	api      TelegramAPI
	tenants  domain.TenantRepository
	botUsers domain.BotUserRepository
}

func NewNotifier(api TelegramAPI, tenants domain.TenantRepository, botUsers domain.BotUserRepository) *Notifier {
	return &Notifier{api: api, tenants: tenants, botUsers: botUsers}
}

func (n *Notifier) PaymentApproved(ctx context.Context, r *domain.Receipt) error {
	text := fmt.Sprintf("Your payment was approved.\nTracking code: %s\nAmount: %d", r.TrackingCode, r.Amount)
	if err := n.send(ctx, r, text); err != nil {
		return fmt.Errorf("bot.PaymentApproved: %w", err)
	}
	return nil
}

func (n *Notifier) PaymentRejected(ctx context.Context, r *domain.Receipt) error {
	text := fmt.Sprintf("Your payment was rejected.\nTracking code: %s", r.TrackingCode)
	if r.ReviewNote != "" {
		text += "\nReason: " + r.ReviewNote
	}
	if err := n.send(ctx, r, text); err != nil {
		return fmt.Errorf("bot.PaymentRejected: %w", err)
	}
	return nil
}

// send resolves the tenant's bot token and the user's chat id, both through
// tenant-scoped lookups keyed by the receipt's own tenant.
func (n *Notifier) send(ctx context.Context, r *domain.Receipt, text string) error {
	tenant, err := n.tenants.GetByID(ctx, r.TenantID)
	if err != nil {
		return err
	}
	user, err := n.botUsers.GetByID(ctx, r.TenantID, r.UserID)
	if err != nil {
		return err
	}

	return n.api.SendMessage(ctx, tenant.BotToken, user.ExternalID, text)
}
