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

type CreateCardInput struct {
	Body struct {
		Number     string `json:"number" minLength:"16" maxLength:"19" doc:"Card number"`
		HolderName string `json:"holder_name" minLength:"1" maxLength:"255" doc:"Card holder name"`
		BankName   string `json:"bank_name,omitempty" maxLength:"255" doc:"Issuing bank"`
	}
}

type CreateCardOutput struct {
	Body *domain.PaymentCard
}

type ListCardsOutput struct {
	Body []*domain.PaymentCard
}

type GetCardInput struct {
	ID uuid.UUID `path:"id" doc:"Card ID"`
}

type GetCardOutput struct {
	Body *domain.PaymentCard
}

type SetCardActiveInput struct {
	ID   uuid.UUID `path:"id" doc:"Card ID"`
	Body struct {
		Active bool `json:"active" doc:"Whether the card participates in rotation"`
	}
}

type SetCardActiveOutput struct {
	Body *domain.PaymentCard
}

type NextCardOutput struct {
	Body *domain.PaymentCard
}

// RegisterCardRoutes wires tenant card management and rotation. Card
// mutations require owner; the next-card read is open to any tenant role
// since the bot path exercises it for every card-to-card payment.
func RegisterCardRoutes(api huma.API, store DataStore, selector CardSelector) {
	huma.Register(api, huma.Operation{
		OperationID: "create-card",
		Method:      http.MethodPost,
		Path:        "/cards",
		Summary:     "Add a payment card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *CreateCardInput) (*CreateCardOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		card := &domain.PaymentCard{
			ID:         uuid.New(),
			TenantID:   tenantID,
			Number:     input.Body.Number,
			HolderName: input.Body.HolderName,
			BankName:   input.Body.BankName,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := store.Cards().Create(ctx, card); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("card already registered")
			}
			return nil, huma.Error500InternalServerError("failed to create card", err)
		}

		return &CreateCardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cards",
		Method:      http.MethodGet,
		Path:        "/cards",
		Summary:     "List the tenant's payment cards",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *struct{}) (*ListCardsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		cards, err := store.Cards().List(ctx, tenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list cards", err)
		}

		return &ListCardsOutput{Body: cards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-card",
		Method:      http.MethodGet,
		Path:        "/cards/{id}",
		Summary:     "Get a payment card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *GetCardInput) (*GetCardOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		card, err := store.Cards().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("card not found")
			}
			return nil, huma.Error500InternalServerError("failed to get card", err)
		}

		return &GetCardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-card-active",
		Method:      http.MethodPut,
		Path:        "/cards/{id}/active",
		Summary:     "Activate or deactivate a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *SetCardActiveInput) (*SetCardActiveOutput, error) {
		tenantID, err := requireOwner(ctx)
		if err != nil {
			return nil, err
		}

		if err := store.Cards().SetActive(ctx, tenantID, input.ID, input.Body.Active); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("card not found")
			}
			return nil, huma.Error500InternalServerError("failed to update card", err)
		}

		card, err := store.Cards().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to reload card", err)
		}

		return &SetCardActiveOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-card",
		Method:      http.MethodPost,
		Path:        "/cards/next",
		Summary:     "Select the next card per the tenant's rotation strategy",
		Description: "Selection records a use against the chosen card, so repeated calls rotate.",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *struct{}) (*NextCardOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		card, err := selector.Next(ctx, tenantID)
		if err != nil {
			if errors.Is(err, domain.ErrNoCardAvailable) {
				return nil, huma.Error409Conflict("no active card available")
			}
			return nil, huma.Error500InternalServerError("failed to select card", err)
		}

		return &NextCardOutput{Body: card}, nil
	})
}
