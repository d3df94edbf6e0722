package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/domain"
	redisstore "github.com/veilgate/veilgate/internal/store/redis"
)

// TenantCache is the shared cache surface the resolver needs.
// *redis.Cache satisfies this interface.
type TenantCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error
	SubscribeInvalidations(ctx context.Context) (<-chan uuid.UUID, func(), error)
}

// cachedFlag is the cache wire form. Found=false caches the absence of an
// override so missing rows do not hammer the database.
type cachedFlag struct {
	Found   bool           `json:"found"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

type cachedConfig struct {
	Found bool           `json:"found"`
	Value map[string]any `json:"value,omitempty"`
}

type localEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Resolver answers "is feature X enabled for tenant T" with tenant override →
// system default precedence. Lookups go local map → shared Redis cache →
// database. Writes invalidate both layers; the Redis invalidation channel
// keeps sibling processes' local maps honest, and the TTL bounds staleness
// even if a message is lost.
type Resolver struct {
	repo  domain.FlagRepository
	cache TenantCache
	ttl   time.Duration

	mu    sync.RWMutex
	local map[string]localEntry
}

func NewResolver(repo domain.FlagRepository, cache TenantCache, ttl time.Duration) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		local: make(map[string]localEntry),
	}
}

// Start subscribes to cross-process invalidations and drops local entries for
// published tenants. Blocks until ctx is done.
func (r *Resolver) Start(ctx context.Context) error {
	ch, cleanup, err := r.cache.SubscribeInvalidations(ctx)
	if err != nil {
		return fmt.Errorf("flags.Resolver.Start: %w", err)
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case tenantID, ok := <-ch:
			if !ok {
				return nil
			}
			r.dropLocal(tenantID)
		}
	}
}

// IsEnabled resolves a boolean flag for the tenant. A missing override row
// yields the registered system default; an unregistered key resolves to false
// and is logged, since it indicates a flag consumer without a declared default.
func (r *Resolver) IsEnabled(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	f, err := r.resolveFlag(ctx, tenantID, key)
	if err != nil {
		return false, err
	}
	return f.Enabled, nil
}

// FlagConfig resolves the structured config attached to a flag.
func (r *Resolver) FlagConfig(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error) {
	f, err := r.resolveFlag(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	return f.Config, nil
}

func (r *Resolver) resolveFlag(ctx context.Context, tenantID uuid.UUID, key string) (cachedFlag, error) {
	cacheKey := redisstore.FlagKey(tenantID, "flag:"+key)

	if payload, ok := r.getLocal(cacheKey); ok {
		return r.decodeFlag(payload, key)
	}

	payload, err := r.cache.Get(ctx, cacheKey)
	if err == nil {
		r.setLocal(cacheKey, payload)
		return r.decodeFlag(payload, key)
	}
	if !errors.Is(err, redisstore.ErrMiss) {
		// Cache down is degraded, not fatal; fall through to the database.
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("key", key).Msg("flags: cache read failed")
	}

	cf := cachedFlag{}
	flag, err := r.repo.GetFlag(ctx, tenantID, key)
	switch {
	case err == nil:
		cf = cachedFlag{Found: true, Enabled: flag.Enabled, Config: flag.Config}
	case errors.Is(err, domain.ErrNotFound):
		cf = cachedFlag{Found: false}
	default:
		return cachedFlag{}, fmt.Errorf("flags.resolveFlag: %w", err)
	}

	encoded, err := json.Marshal(cf)
	if err != nil {
		return cachedFlag{}, fmt.Errorf("flags.resolveFlag: marshal: %w", err)
	}
	if err := r.cache.Set(ctx, cacheKey, encoded); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("key", key).Msg("flags: cache write failed")
	}
	r.setLocal(cacheKey, encoded)

	return r.withDefault(cf, key), nil
}

func (r *Resolver) decodeFlag(payload []byte, key string) (cachedFlag, error) {
	var cf cachedFlag
	if err := json.Unmarshal(payload, &cf); err != nil {
		return cachedFlag{}, fmt.Errorf("flags.decodeFlag: %w", err)
	}
	return r.withDefault(cf, key), nil
}

// withDefault substitutes the system default when no override row exists.
func (r *Resolver) withDefault(cf cachedFlag, key string) cachedFlag {
	if cf.Found {
		return cf
	}

	d, ok := DefaultFlag(key)
	if !ok {
		log.Warn().Str("key", key).Msg("flags: lookup for unregistered flag key")
		return cachedFlag{}
	}
	return cachedFlag{Enabled: d.Enabled, Config: d.Config}
}

// Value resolves a tenant configuration value with the same override →
// default precedence as flags.
func (r *Resolver) Value(ctx context.Context, tenantID uuid.UUID, key string) (map[string]any, error) {
	cacheKey := redisstore.FlagKey(tenantID, "config:"+key)

	if payload, ok := r.getLocal(cacheKey); ok {
		return r.decodeConfig(payload, key)
	}

	payload, err := r.cache.Get(ctx, cacheKey)
	if err == nil {
		r.setLocal(cacheKey, payload)
		return r.decodeConfig(payload, key)
	}
	if !errors.Is(err, redisstore.ErrMiss) {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("key", key).Msg("flags: cache read failed")
	}

	cc := cachedConfig{}
	cfg, err := r.repo.GetConfig(ctx, tenantID, key)
	switch {
	case err == nil:
		cc = cachedConfig{Found: true, Value: cfg.Value}
	case errors.Is(err, domain.ErrNotFound):
		cc = cachedConfig{Found: false}
	default:
		return nil, fmt.Errorf("flags.Value: %w", err)
	}

	encoded, err := json.Marshal(cc)
	if err != nil {
		return nil, fmt.Errorf("flags.Value: marshal: %w", err)
	}
	if err := r.cache.Set(ctx, cacheKey, encoded); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Str("key", key).Msg("flags: cache write failed")
	}
	r.setLocal(cacheKey, encoded)

	return r.configWithDefault(cc, key), nil
}

func (r *Resolver) decodeConfig(payload []byte, key string) (map[string]any, error) {
	var cc cachedConfig
	if err := json.Unmarshal(payload, &cc); err != nil {
		return nil, fmt.Errorf("flags.decodeConfig: %w", err)
	}
	return r.configWithDefault(cc, key), nil
}

func (r *Resolver) configWithDefault(cc cachedConfig, key string) map[string]any {
	if cc.Found {
		return cc.Value
	}

	d, ok := DefaultConfig(key)
	if !ok {
		log.Warn().Str("key", key).Msg("flags: lookup for unregistered config key")
		return nil
	}
	return d
}

// SetFlags writes overrides atomically and invalidates both cache layers.
func (r *Resolver) SetFlags(ctx context.Context, tenantID uuid.UUID, toSet []*domain.FeatureFlag) error {
	if err := r.repo.SetFlags(ctx, tenantID, toSet); err != nil {
		return fmt.Errorf("flags.SetFlags: %w", err)
	}

	r.dropLocal(tenantID)
	if err := r.cache.InvalidateTenant(ctx, tenantID); err != nil {
		// The write committed; the TTL bounds how long stale reads survive.
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("flags: cache invalidation failed")
	}

	return nil
}

// SetConfigs writes configuration values atomically and invalidates caches.
func (r *Resolver) SetConfigs(ctx context.Context, tenantID uuid.UUID, toSet []*domain.TenantConfig) error {
	if err := r.repo.SetConfigs(ctx, tenantID, toSet); err != nil {
		return fmt.Errorf("flags.SetConfigs: %w", err)
	}

	r.dropLocal(tenantID)
	if err := r.cache.InvalidateTenant(ctx, tenantID); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("flags: cache invalidation failed")
	}

	return nil
}

// --- local map layer ---

func (r *Resolver) getLocal(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.local[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}

func (r *Resolver) setLocal(key string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[key] = localEntry{payload: payload, expiresAt: time.Now().Add(r.ttl)}
}

func (r *Resolver) dropLocal(tenantID uuid.UUID) {
	prefix := redisstore.FlagKey(tenantID, "")

	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.local {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(r.local, k)
		}
	}
}
