package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/server/middleware"
)

type WalletBalanceInput struct {
	UserID uuid.UUID `path:"userID" doc:"Bot user ID"`
}

type WalletBalanceOutput struct {
	Body struct {
		UserID  uuid.UUID `json:"user_id"`
		Balance int64     `json:"balance"`
	}
}

type WalletHistoryInput struct {
	UserID uuid.UUID `path:"userID" doc:"Bot user ID"`
	Limit  int       `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int       `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type WalletHistoryOutput struct {
	Body []*domain.LedgerEntry
}

type WalletAdjustInput struct {
	UserID uuid.UUID `path:"userID" doc:"Bot user ID"`
	Body   struct {
		Amount int64  `json:"amount" minimum:"1" doc:"Adjustment amount, always positive"`
		Note   string `json:"note,omitempty" maxLength:"1000" doc:"Reason for the adjustment"`
	}
}

type WalletAdjustOutput struct {
	Body *domain.LedgerEntry
}

// RegisterWalletRoutes wires wallet reads and manual adjustments. Reads are
// open to any tenant role; credit and debit adjustments require owner since
// they move money outside the receipt flow.
func RegisterWalletRoutes(api huma.API, wallets WalletService) {
	huma.Register(api, huma.Operation{
		OperationID: "wallet-balance",
		Method:      http.MethodGet,
		Path:        "/wallets/{userID}",
		Summary:     "Get a bot user's wallet balance",
		Tags:        []string{"Wallet"},
	}, func(ctx context.Context, input *WalletBalanceInput) (*WalletBalanceOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		balance, err := wallets.Balance(ctx, tenantID, input.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			if errors.Is(err, domain.ErrForbidden) {
				return nil, huma.Error403Forbidden("wallet disabled for this tenant")
			}
			return nil, huma.Error500InternalServerError("failed to get balance", err)
		}

		out := &WalletBalanceOutput{}
		out.Body.UserID = input.UserID
		out.Body.Balance = balance
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wallet-history",
		Method:      http.MethodGet,
		Path:        "/wallets/{userID}/history",
		Summary:     "List a bot user's ledger entries, newest first",
		Tags:        []string{"Wallet"},
	}, func(ctx context.Context, input *WalletHistoryInput) (*WalletHistoryOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		entries, err := wallets.History(ctx, tenantID, input.UserID, input.Limit, input.Offset)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return nil, huma.Error403Forbidden("wallet disabled for this tenant")
			}
			return nil, huma.Error500InternalServerError("failed to list history", err)
		}

		return &WalletHistoryOutput{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wallet-credit",
		Method:      http.MethodPost,
		Path:        "/wallets/{userID}/credit",
		Summary:     "Manually credit a bot user's wallet",
		Tags:        []string{"Wallet"},
	}, func(ctx context.Context, input *WalletAdjustInput) (*WalletAdjustOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}
		actorID, _ := middleware.UserIDFromContext(ctx)

		entry, err := wallets.Credit(ctx, tenantID, input.UserID, input.Body.Amount, "admin_adjust", actorID.String(), input.Body.Note)
		if err != nil {
			return nil, adjustError(err)
		}

		return &WalletAdjustOutput{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wallet-debit",
		Method:      http.MethodPost,
		Path:        "/wallets/{userID}/debit",
		Summary:     "Manually debit a bot user's wallet",
		Description: "Fails without side effects when the balance cannot cover the amount.",
		Tags:        []string{"Wallet"},
	}, func(ctx context.Context, input *WalletAdjustInput) (*WalletAdjustOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}
		actorID, _ := middleware.UserIDFromContext(ctx)

		entry, err := wallets.Debit(ctx, tenantID, input.UserID, input.Body.Amount, "admin_adjust", actorID.String(), input.Body.Note)
		if err != nil {
			return nil, adjustError(err)
		}

		return &WalletAdjustOutput{Body: entry}, nil
	})
}

func adjustError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("user not found")
	case errors.Is(err, domain.ErrInsufficientBalance):
		return huma.Error422UnprocessableEntity("insufficient balance")
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("wallet disabled for this tenant")
	default:
		return huma.Error500InternalServerError("failed to adjust wallet", err)
	}
}
