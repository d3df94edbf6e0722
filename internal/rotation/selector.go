package rotation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
	"github.com/veilgate/veilgate/internal/flags"
)

// ConfigResolver is the flag-resolver surface the selector needs.
// *flags.Resolver satisfies this interface.
type ConfigResolver interface {
	Value(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error)
}

// Selector picks the next payment card to present for a tenant. The strategy
// comes from the tenant's rotation config; rotation state (use counters,
// last-used timestamps) is persisted on the card rows so fairness survives
// process restarts.
type Selector struct {
	cards    domain.CardRepository
	resolver ConfigResolver

	// Injectable for deterministic tests.
	now       func() time.Time
	randIntN  func(n int) int
	randFloat func() float64
}

func NewSelector(cards domain.CardRepository, resolver ConfigResolver) *Selector {
	return &Selector{
		cards:     cards,
		resolver:  resolver,
		now:       time.Now,
		randIntN:  rand.Intn,
		randFloat: rand.Float64,
	}
}

// Next selects one active card for the tenant and records the use. An empty
// active set returns ErrNoCardAvailable; callers treat that as a normal
// outcome and offer another payment method.
func (s *Selector) Next(ctx context.Context, tenantID uuid.UUID) (*domain.PaymentCard, error) {
	active, err := s.cards.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("rotation.Next: %w", err)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("rotation.Next: %w", domain.ErrNoCardAvailable)
	}

	strategy, interval := s.tenantStrategy(ctx, tenantID)

	var card *domain.PaymentCard
	switch strategy {
	case domain.RotationRandom:
		card = active[s.randIntN(len(active))]
	case domain.RotationTimeBased:
		card = s.timeBased(active, interval)
	case domain.RotationWeighted:
		card = s.weighted(active)
	default:
		card = roundRobin(active)
	}

	if err := s.cards.RecordUse(ctx, tenantID, card.ID); err != nil {
		return nil, fmt.Errorf("rotation.Next: %w", err)
	}

	return card, nil
}

// RecordOutcome settles a prior selection once the payment result is known,
// feeding the weighted strategy's success counters.
func (s *Selector) RecordOutcome(ctx context.Context, tenantID, cardID uuid.UUID, success bool) error {
	if err := s.cards.RecordOutcome(ctx, tenantID, cardID, success); err != nil {
		return fmt.Errorf("rotation.RecordOutcome: %w", err)
	}
	return nil
}

// tenantStrategy reads the tenant's rotation config, defaulting to
// round-robin on any resolution problem rather than failing the payment flow.
func (s *Selector) tenantStrategy(ctx context.Context, tenantID uuid.UUID) (domain.RotationStrategy, time.Duration) {
	strategy := domain.RotationRoundRobin
	interval := time.Hour

	cfg, err := s.resolver.Value(ctx, tenantID, flags.CfgCardRotation)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("rotation: config lookup failed, using round_robin")
		return strategy, interval
	}

	if v, ok := cfg["strategy"].(string); ok {
		switch domain.RotationStrategy(v) {
		case domain.RotationRoundRobin, domain.RotationRandom, domain.RotationTimeBased, domain.RotationWeighted:
			strategy = domain.RotationStrategy(v)
		}
	}
	// Sub-second values would truncate to a zero interval and the bucket
	// division in timeBased must never see one; clamp to a second.
	if v, ok := cfg["interval_seconds"].(float64); ok && v >= 1 {
		interval = time.Duration(v * float64(time.Second))
	}

	return strategy, interval
}

// roundRobin returns the least-recently-used card: never-used cards first in
// stable creation order, then the oldest last_used_at. N consecutive
// selections over a fixed set of N cards visit each exactly once.
func roundRobin(active []*domain.PaymentCard) *domain.PaymentCard {
	best := active[0]
	for _, c := range active[1:] {
		if c.LastUsedAt == nil {
			if best.LastUsedAt != nil {
				best = c
			}
			continue
		}
		if best.LastUsedAt != nil && c.LastUsedAt.Before(*best.LastUsedAt) {
			best = c
		}
	}
	return best
}

// timeBased buckets elapsed time into intervals and cycles through the active
// set one card per interval.
func (s *Selector) timeBased(active []*domain.PaymentCard, interval time.Duration) *domain.PaymentCard {
	if interval < time.Second {
		interval = time.Second
	}
	bucket := s.now().Unix() / int64(interval.Seconds())
	idx := int(bucket % int64(len(active)))
	return active[idx]
}

// weighted draws a card with probability proportional to its observed success
// rate. A card with no settled outcomes weighs 1.0 so new cards get traffic.
func (s *Selector) weighted(active []*domain.PaymentCard) *domain.PaymentCard {
	var total float64
	for _, c := range active {
		total += c.SuccessRate()
	}
	if total == 0 {
		// All cards failing; fall back to uniform rather than starving.
		return active[s.randIntN(len(active))]
	}

	target := s.randFloat() * total
	var cum float64
	for _, c := range active {
		cum += c.SuccessRate()
		if target < cum {
			return c
		}
	}
	return active[len(active)-1]
}
