package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrForbidden    = errors.New("domain: forbidden")

	// ErrTenantSuspended distinguishes a known-but-disabled tenant from an
	// unknown credential, so operators can tell misconfiguration from
	// intentional suspension.
	ErrTenantSuspended = errors.New("domain: tenant suspended")

	// ErrInsufficientBalance rejects a debit that would take a wallet negative.
	ErrInsufficientBalance = errors.New("domain: insufficient balance")

	// ErrInvalidTransition rejects a state change out of a terminal state,
	// e.g. approving an already-approved receipt.
	ErrInvalidTransition = errors.New("domain: invalid state transition")

	// ErrNoCardAvailable is the expected result when a tenant has no active
	// payment cards. Callers fall back to another payment method.
	ErrNoCardAvailable = errors.New("domain: no payment card available")
)
