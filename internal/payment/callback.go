package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
)

// CallbackSettler settles a gateway redirect by authority code.
type CallbackSettler interface {
	HandleCallback(ctx context.Context, authority string, payerOK bool) (*domain.Receipt, error)
}

// CallbackHandler is the public endpoint a payment gateway redirects the
// payer back to. It is unauthenticated: the authority code is the only
// credential, and the receipt row it resolves to supplies the tenant.
type CallbackHandler struct {
	settler CallbackSettler
}

func NewCallbackHandler(settler CallbackSettler) *CallbackHandler {
	return &CallbackHandler{settler: settler}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider := chi.URLParam(r, "provider")
	authority := r.URL.Query().Get("Authority")
	if authority == "" {
		http.Error(w, "missing authority", http.StatusBadRequest)
		return
	}
	payerOK := r.URL.Query().Get("Status") == "OK"

	receipt, err := h.settler.HandleCallback(ctx, authority, payerOK)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "unknown payment", http.StatusNotFound)
			return
		}
		// Verification failed or errored; the receipt stays pending and the
		// payer sees nothing actionable. Detail goes to the log only.
		log.Error().Err(err).Str("provider", provider).Str("authority", authority).Msg("payment: callback settle failed")
		http.Error(w, "payment could not be verified, please contact support", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch receipt.Status {
	case domain.ReceiptApproved:
		_, _ = w.Write([]byte("Payment confirmed. Tracking code: " + receipt.TrackingCode))
	case domain.ReceiptRejected:
		_, _ = w.Write([]byte("Payment was cancelled. Tracking code: " + receipt.TrackingCode))
	default:
		_, _ = w.Write([]byte("Payment received and pending review. Tracking code: " + receipt.TrackingCode))
	}
}
