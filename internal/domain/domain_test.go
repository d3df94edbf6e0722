package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilgate/veilgate/internal/domain"
)

// ---------------------------------------------------------------------------
// 1. ReceiptStatus.ValidTransition — full 3x3 state-machine matrix.
// ---------------------------------------------------------------------------

func TestReceiptStatus_ValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from domain.ReceiptStatus
		to   domain.ReceiptStatus
		want bool
	}{
		// From pending.
		{domain.ReceiptPending, domain.ReceiptApproved, true},
		{domain.ReceiptPending, domain.ReceiptRejected, true},
		{domain.ReceiptPending, domain.ReceiptPending, false},

		// From approved (terminal).
		{domain.ReceiptApproved, domain.ReceiptPending, false},
		{domain.ReceiptApproved, domain.ReceiptApproved, false},
		{domain.ReceiptApproved, domain.ReceiptRejected, false},

		// From rejected (terminal).
		{domain.ReceiptRejected, domain.ReceiptPending, false},
		{domain.ReceiptRejected, domain.ReceiptApproved, false},
		{domain.ReceiptRejected, domain.ReceiptRejected, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			got := tt.from.ValidTransition(tt.to)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// 2. Tenant.Active
// ---------------------------------------------------------------------------

func TestTenant_Active(t *testing.T) {
	t.Parallel()

	assert.True(t, (&domain.Tenant{Status: domain.TenantActive}).Active())
	assert.False(t, (&domain.Tenant{Status: domain.TenantSuspended}).Active())
	assert.False(t, (&domain.Tenant{}).Active(), "zero status is not active")
}

// ---------------------------------------------------------------------------
// 3. PaymentCard.SuccessRate
// ---------------------------------------------------------------------------

func TestPaymentCard_SuccessRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		successes int64
		failures  int64
		want      float64
	}{
		{"no_history_defaults_to_one", 0, 0, 1.0},
		{"all_success", 10, 0, 1.0},
		{"all_failure", 0, 4, 0.0},
		{"mixed", 3, 1, 0.75},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &domain.PaymentCard{SuccessCount: tt.successes, FailureCount: tt.failures}
			assert.InDelta(t, tt.want, c.SuccessRate(), 1e-9)
		})
	}
}
