package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/veilgate/veilgate/internal/domain"
)

// Provisioner delivers the purchased subscription to the paying user through
// the tenant's bot. It satisfies the payment service's Provisioner interface:
// delivery failing keeps the receipt flagged for reconciliation, so a paid-for
// subscription is never silently dropped.
type Provisioner struct {
	api      TelegramAPI
	tenants  domain.TenantRepository
	botUsers domain.BotUserRepository
	wallet   WalletReader
}

func NewProvisioner(api TelegramAPI, tenants domain.TenantRepository, botUsers domain.BotUserRepository, wallet WalletReader) *Provisioner {
	return &Provisioner{api: api, tenants: tenants, botUsers: botUsers, wallet: wallet}
}

func (p *Provisioner) Provision(ctx context.Context, r *domain.Receipt) error {
	tenant, err := p.tenants.GetByID(ctx, r.TenantID)
	if err != nil {
		return fmt.Errorf("bot.Provision: %w", err)
	}
	user, err := p.botUsers.GetByID(ctx, r.TenantID, r.UserID)
	if err != nil {
		return fmt.Errorf("bot.Provision: %w", err)
	}
	// Tenants with the wallet switched off still get their delivery, just
	// without the balance line; anything else is a real failure.
	text := fmt.Sprintf("Your subscription is active.\nTracking code: %s", r.TrackingCode)
	balance, err := p.wallet.Balance(ctx, r.TenantID, r.UserID)
	switch {
	case errors.Is(err, domain.ErrForbidden):
	case err != nil:
		return fmt.Errorf("bot.Provision: %w", err)
	default:
		text += fmt.Sprintf("\nWallet balance: %d", balance)
	}
	if err := p.api.SendMessage(ctx, tenant.BotToken, user.ExternalID, text); err != nil {
		return fmt.Errorf("bot.Provision: %w", err)
	}
	return nil
}
