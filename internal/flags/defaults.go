package flags

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veilgate/veilgate/internal/domain"
)

// System defaults. This registry is the single authoritative source for what
// an absent override row means; tenant settings JSON is never consulted for
// flagged behavior, so the two stores cannot diverge.

// Flag keys.
const (
	KeyCardToCard      = "payments.card_to_card"
	KeyGatewayPayments = "payments.gateway"
	KeyWallet          = "wallet.enabled"
	KeyAutoApprove     = "signup.auto_approve"
)

// Config keys.
const (
	CfgCardRotation = "cards.rotation"
	CfgMinTopup     = "wallet.min_topup"
	CfgCurrency     = "billing.currency"
)

// FlagDefault is the resolved value for a tenant with no override row.
type FlagDefault struct {
	Enabled bool
	Config  map[string]any
}

var flagDefaults = map[string]FlagDefault{
	KeyCardToCard:      {Enabled: true},
	KeyGatewayPayments: {Enabled: false},
	KeyWallet:          {Enabled: true},
	KeyAutoApprove:     {Enabled: true},
}

var configDefaults = map[string]map[string]any{
	CfgCardRotation: {"strategy": "round_robin", "interval_seconds": float64(3600)},
	CfgMinTopup:     {"amount": float64(10000)},
	CfgCurrency:     {"code": "IRT"},
}

// DefaultFlag returns the registered default for key. ok is false for keys
// the platform does not know about.
func DefaultFlag(key string) (FlagDefault, bool) {
	d, ok := flagDefaults[key]
	return d, ok
}

// DefaultConfig returns the registered default config value for key.
func DefaultConfig(key string) (map[string]any, bool) {
	v, ok := configDefaults[key]
	return v, ok
}

// FlagKeys returns every registered flag key in sorted order.
func FlagKeys() []string {
	keys := make([]string, 0, len(flagDefaults))
	for k := range flagDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigKeys returns every registered config key in sorted order.
func ConfigKeys() []string {
	keys := make([]string, 0, len(configDefaults))
	for k := range configDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KnownFlag reports whether key is a registered flag key.
func KnownFlag(key string) bool {
	_, ok := flagDefaults[key]
	return ok
}

// KnownConfig reports whether key is a registered config key.
func KnownConfig(key string) bool {
	_, ok := configDefaults[key]
	return ok
}

// SeedFlags materializes the full default flag set as rows for a new tenant,
// so onboarding writes an explicit baseline instead of relying on absence.
func SeedFlags(tenantID uuid.UUID, now time.Time) []*domain.FeatureFlag {
	out := make([]*domain.FeatureFlag, 0, len(flagDefaults))
	for key, d := range flagDefaults {
		out = append(out, &domain.FeatureFlag{
			TenantID:  tenantID,
			Key:       key,
			Enabled:   d.Enabled,
			Config:    d.Config,
			UpdatedAt: now,
		})
	}
	return out
}

// SeedConfigs materializes the default config rows for a new tenant.
func SeedConfigs(tenantID uuid.UUID, now time.Time) []*domain.TenantConfig {
	out := make([]*domain.TenantConfig, 0, len(configDefaults))
	for key, v := range configDefaults {
		out = append(out, &domain.TenantConfig{
			TenantID:  tenantID,
			Key:       key,
			Value:     v,
			UpdatedAt: now,
		})
	}
	return out
}
