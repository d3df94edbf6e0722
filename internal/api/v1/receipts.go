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

type SubmitReceiptInput struct {
	Body struct {
		UserID       uuid.UUID  `json:"user_id" doc:"Bot user the payment belongs to"`
		CardID       *uuid.UUID `json:"card_id,omitempty" doc:"Card the transfer was sent to, if card-to-card"`
		Amount       int64      `json:"amount" minimum:"1" doc:"Paid amount in the smallest currency unit"`
		TrackingCode string     `json:"tracking_code" minLength:"1" maxLength:"255" doc:"Bank tracking code from the transfer"`
	}
}

type SubmitReceiptOutput struct {
	Body *domain.Receipt
}

type ListReceiptsInput struct {
	Status string `query:"status" enum:"pending,approved,rejected" default:"pending" doc:"Receipt status to list"`
	Limit  int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListReceiptsOutput struct {
	Body []*domain.Receipt
}

type GetReceiptInput struct {
	ID uuid.UUID `path:"id" doc:"Receipt ID"`
}

type GetReceiptOutput struct {
	Body *domain.Receipt
}

type ReviewReceiptInput struct {
	ID   uuid.UUID `path:"id" doc:"Receipt ID"`
	Body struct {
		Note string `json:"note,omitempty" maxLength:"1000" doc:"Reviewer note"`
	}
}

type ReviewReceiptOutput struct {
	Body *domain.Receipt
}

// RegisterReceiptRoutes wires the receipt review queue. Any tenant role can
// read; approve and reject are the reviewer's job, so every tenant role
// qualifies and the decision is stamped with the acting user.
func RegisterReceiptRoutes(api huma.API, store DataStore, payments PaymentService) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-receipt",
		Method:      http.MethodPost,
		Path:        "/receipts",
		Summary:     "Submit a payment claim on behalf of a bot user",
		Tags:        []string{"Receipts"},
	}, func(ctx context.Context, input *SubmitReceiptInput) (*SubmitReceiptOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		receipt, err := payments.SubmitReceipt(ctx, tenantID, input.Body.UserID, input.Body.CardID, input.Body.Amount, input.Body.TrackingCode)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrConflict):
				return nil, huma.Error409Conflict("tracking code already submitted")
			case errors.Is(err, domain.ErrForbidden):
				return nil, huma.Error403Forbidden("card-to-card payments disabled")
			default:
				return nil, huma.Error500InternalServerError("failed to submit receipt", err)
			}
		}

		return &SubmitReceiptOutput{Body: receipt}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-receipts",
		Method:      http.MethodGet,
		Path:        "/receipts",
		Summary:     "List the tenant's receipts by status",
		Tags:        []string{"Receipts"},
	}, func(ctx context.Context, input *ListReceiptsInput) (*ListReceiptsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		receipts, err := store.Receipts().ListByStatus(ctx, tenantID, domain.ReceiptStatus(input.Status), input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list receipts", err)
		}

		return &ListReceiptsOutput{Body: receipts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-receipt",
		Method:      http.MethodGet,
		Path:        "/receipts/{id}",
		Summary:     "Get a receipt",
		Tags:        []string{"Receipts"},
	}, func(ctx context.Context, input *GetReceiptInput) (*GetReceiptOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("tenant context required")
		}

		receipt, err := store.Receipts().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("receipt not found")
			}
			return nil, huma.Error500InternalServerError("failed to get receipt", err)
		}

		return &GetReceiptOutput{Body: receipt}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-receipt",
		Method:      http.MethodPost,
		Path:        "/receipts/{id}/approve",
		Summary:     "Approve a pending receipt",
		Description: "Approval credits the payer's wallet atomically and triggers subscription provisioning.",
		Tags:        []string{"Receipts"},
	}, func(ctx context.Context, input *ReviewReceiptInput) (*ReviewReceiptOutput, error) {
		tenantID, reviewerID, err := reviewActor(ctx)
		if err != nil {
			return nil, err
		}

		receipt, _, err := payments.Approve(ctx, tenantID, input.ID, reviewerID, input.Body.Note)
		if err != nil {
			return nil, reviewError(err)
		}

		return &ReviewReceiptOutput{Body: receipt}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-receipt",
		Method:      http.MethodPost,
		Path:        "/receipts/{id}/reject",
		Summary:     "Reject a pending receipt",
		Tags:        []string{"Receipts"},
	}, func(ctx context.Context, input *ReviewReceiptInput) (*ReviewReceiptOutput, error) {
		tenantID, reviewerID, err := reviewActor(ctx)
		if err != nil {
			return nil, err
		}

		receipt, err := payments.Reject(ctx, tenantID, input.ID, reviewerID, input.Body.Note)
		if err != nil {
			return nil, reviewError(err)
		}

		return &ReviewReceiptOutput{Body: receipt}, nil
	})
}

func reviewActor(ctx context.Context) (tenantID, reviewerID uuid.UUID, err error) {
	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, huma.Error403Forbidden("tenant context required")
	}
	reviewerID, ok = middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, huma.Error401Unauthorized("authentication required")
	}
	return tenantID, reviewerID, nil
}

func reviewError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("receipt not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		return huma.Error409Conflict("receipt already settled")
	default:
		return huma.Error500InternalServerError("failed to review receipt", err)
	}
}
