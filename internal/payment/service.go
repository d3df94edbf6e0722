package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
)

// Notifier delivers payment outcomes back to the paying bot user. Delivery is
// best effort; a failed notification never rolls back a settled payment.
type Notifier interface {
	PaymentApproved(ctx context.Context, r *domain.Receipt) error
	PaymentRejected(ctx context.Context, r *domain.Receipt) error
}

// Provisioner grants whatever the payment bought (a subscription, a renewal).
// A failed provision leaves the receipt flagged for the reconcile loop.
type Provisioner interface {
	Provision(ctx context.Context, r *domain.Receipt) error
}

// FlagChecker is the resolver surface the service needs.
type FlagChecker interface {
	IsEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
}

// CardOutcomes feeds review results back into card rotation so weighted
// selection learns which cards clear. Best effort; a failed counter update
// never blocks a settled review.
type CardOutcomes interface {
	RecordOutcome(ctx context.Context, tenantID, cardID uuid.UUID, success bool) error
}

// Service orchestrates the receipt lifecycle: submission, review, gateway
// callbacks and provisioning retries. Status transitions themselves are
// guarded in the store; the service sequences the side effects around them.
type Service struct {
	receipts    domain.ReceiptRepository
	flags       FlagChecker
	gateway     Gateway
	notifier    Notifier
	provisioner Provisioner
	cards       CardOutcomes

	callbackBase string
}

func NewService(receipts domain.ReceiptRepository, checker FlagChecker, gateway Gateway, notifier Notifier, provisioner Provisioner, cards CardOutcomes, callbackBase string) *Service {
	return &Service{
		receipts:     receipts,
		flags:        checker,
		gateway:      gateway,
		notifier:     notifier,
		provisioner:  provisioner,
		cards:        cards,
		callbackBase: callbackBase,
	}
}

// systemReviewer marks decisions made by the gateway callback path rather than
// a human operator.
var systemReviewer = uuid.Nil

// SubmitReceipt records a card-to-card payment claim for manual review.
// The tracking code is the payer's bank reference; a duplicate within the
// tenant fails with ErrConflict.
func (s *Service) SubmitReceipt(ctx context.Context, tenantID, userID uuid.UUID, cardID *uuid.UUID, amount int64, trackingCode string) (*domain.Receipt, error) {
	enabled, err := s.flags.IsEnabled(ctx, tenantID, flags.KeyCardToCard)
	if err != nil {
		return nil, fmt.Errorf("payment.SubmitReceipt: %w", err)
	}
	if !enabled {
		return nil, fmt.Errorf("payment.SubmitReceipt: card-to-card disabled: %w", domain.ErrForbidden)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("payment.SubmitReceipt: amount must be positive, got %d", amount)
	}
	if trackingCode == "" {
		return nil, fmt.Errorf("payment.SubmitReceipt: tracking code required")
	}

	r := &domain.Receipt{
		ID:           uuid.New(),
		TenantID:     tenantID,
		UserID:       userID,
		CardID:       cardID,
		Amount:       amount,
		TrackingCode: trackingCode,
		Status:       domain.ReceiptPending,
		CreatedAt:    time.Now(),
	}
	if err := s.receipts.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("payment.SubmitReceipt: %w", err)
	}

	return r, nil
}

// StartGatewayPayment opens a gateway session and records the pending receipt
// keyed by the provider's authority code. The returned URL is where the payer
// completes the payment.
func (s *Service) StartGatewayPayment(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*domain.Receipt, string, error) {
	enabled, err := s.flags.IsEnabled(ctx, tenantID, flags.KeyGatewayPayments)
	if err != nil {
		return nil, "", fmt.Errorf("payment.StartGatewayPayment: %w", err)
	}
	if !enabled {
		return nil, "", fmt.Errorf("payment.StartGatewayPayment: gateway payments disabled: %w", domain.ErrForbidden)
	}
	if amount <= 0 {
		return nil, "", fmt.Errorf("payment.StartGatewayPayment: amount must be positive, got %d", amount)
	}

	auth, err := s.gateway.RequestAuthority(ctx, AuthorityRequest{
		Amount:      amount,
		Description: description,
		CallbackURL: s.callbackBase + "/payment/callback/" + s.gateway.Provider(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("payment.StartGatewayPayment: %w", err)
	}

	r := &domain.Receipt{
		ID:           uuid.New(),
		TenantID:     tenantID,
		UserID:       userID,
		Amount:       amount,
		TrackingCode: newTrackingCode(),
		Status:       domain.ReceiptPending,
		Authority:    auth.Authority,
		CreatedAt:    time.Now(),
	}
	if err := s.receipts.Create(ctx, r); err != nil {
		return nil, "", fmt.Errorf("payment.StartGatewayPayment: %w", err)
	}

	return r, auth.PayURL, nil
}

// Approve settles a pending receipt: the store credits the wallet in the same
// transaction as the status flip, then the service attempts provisioning and
// notifies the payer. A non-pending receipt fails with ErrInvalidTransition.
func (s *Service) Approve(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, *domain.LedgerEntry, error) {
	r, entry, err := s.receipts.Approve(ctx, tenantID, receiptID, reviewerID, note)
	if err != nil {
		return nil, nil, fmt.Errorf("payment.Approve: %w", err)
	}

	s.provision(ctx, r)
	s.recordCardOutcome(ctx, r, true)

	if err := s.notifier.PaymentApproved(ctx, r); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("receipt_id", receiptID.String()).
			Msg("payment: approval notification failed")
	}

	return r, entry, nil
}

// Reject declines a pending receipt. No wallet movement occurs.
func (s *Service) Reject(ctx context.Context, tenantID, receiptID, reviewerID uuid.UUID, note string) (*domain.Receipt, error) {
	r, err := s.receipts.Reject(ctx, tenantID, receiptID, reviewerID, note)
	if err != nil {
		return nil, fmt.Errorf("payment.Reject: %w", err)
	}

	s.recordCardOutcome(ctx, r, false)

	if err := s.notifier.PaymentRejected(ctx, r); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("receipt_id", receiptID.String()).
			Msg("payment: rejection notification failed")
	}

	return r, nil
}

// HandleCallback settles a gateway redirect. The authority code is the only
// credential the callback carries; the receipt row it resolves to establishes
// tenant context. Replayed callbacks for settled receipts return the receipt
// unchanged.
func (s *Service) HandleCallback(ctx context.Context, authority string, payerOK bool) (*domain.Receipt, error) {
	r, err := s.receipts.GetByAuthority(ctx, authority)
	if err != nil {
		return nil, fmt.Errorf("payment.HandleCallback: %w", err)
	}

	if r.Status != domain.ReceiptPending {
		return r, nil
	}

	if !payerOK {
		return s.Reject(ctx, r.TenantID, r.ID, systemReviewer, "gateway: canceled by payer")
	}

	// A transport failure here leaves the receipt pending so a later callback
	// replay or manual review can settle it. Nothing is credited on doubt.
	verify, err := s.gateway.Verify(ctx, authority, r.Amount)
	if err != nil {
		return nil, fmt.Errorf("payment.HandleCallback: verify: %w", err)
	}
	if !verify.OK {
		return s.Reject(ctx, r.TenantID, r.ID, systemReviewer, "gateway: verification failed")
	}

	approved, _, err := s.Approve(ctx, r.TenantID, r.ID, systemReviewer, "gateway: ref "+verify.RefID)
	if err != nil {
		return nil, err
	}

	return approved, nil
}

// recordCardOutcome updates the rotation counters for card-to-card receipts.
// Gateway receipts carry no card and are skipped.
func (s *Service) recordCardOutcome(ctx context.Context, r *domain.Receipt, success bool) {
	if r.CardID == nil {
		return
	}
	if err := s.cards.RecordOutcome(ctx, r.TenantID, *r.CardID, success); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", r.TenantID.String()).
			Str("card_id", r.CardID.String()).
			Msg("payment: card outcome update failed")
	}
}

// provision attempts delivery and clears the reconcile flag on success. On
// failure the receipt stays flagged and the reconcile loop retries it.
func (s *Service) provision(ctx context.Context, r *domain.Receipt) {
	if err := s.provisioner.Provision(ctx, r); err != nil {
		log.Warn().Err(err).
			Str("tenant_id", r.TenantID.String()).
			Str("receipt_id", r.ID.String()).
			Msg("payment: provisioning failed, queued for reconcile")
		return
	}
	if err := s.receipts.SetNeedsReconcile(ctx, r.TenantID, r.ID, false); err != nil {
		log.Error().Err(err).
			Str("tenant_id", r.TenantID.String()).
			Str("receipt_id", r.ID.String()).
			Msg("payment: clearing reconcile flag failed")
	}
}

const reconcileBatchSize = 50

// RunReconciler retries provisioning for approved receipts that have not been
// delivered, one tenant-scoped unit of work per receipt. It blocks until ctx
// is canceled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileOnce(ctx)
		}
	}
}

func (s *Service) reconcileOnce(ctx context.Context) {
	pending, err := s.receipts.ListNeedsReconcile(ctx, reconcileBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("payment: reconcile listing failed")
		return
	}

	for _, r := range pending {
		if ctx.Err() != nil {
			return
		}
		s.provision(ctx, r)
	}
}

// newTrackingCode generates an internal reference for gateway receipts, where
// the payer has no bank tracking code to submit.
func newTrackingCode() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "gw-" + hex.EncodeToString(b[:])
}
