package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/repository"
	"zarinpal-payment-service/internal/infra/metrics"
)

var _ repository.SettingsRepository = (*cachedSettingsRepo)(nil)

// settingsVersionKey holds the cache generation tag. Scope-0 rows feed every
// scope's merged view, so a scope-0 write cannot just drop its own entry: it
// bumps the generation instead, orphaning all cached scopes at once. The
// orphaned keys age out with the TTL.
const settingsVersionKey = "zp:settings:ver"

// cachedSettingsRepo decorates the settings repository with a per-scope
// redis cache. Saves and deletes invalidate the cached scope so the next
// load sees fresh values; every callback loads settings, so this keeps the
// hot path off the database.
type cachedSettingsRepo struct {
	inner repository.SettingsRepository
	cli   RedisClient
	ttl   time.Duration
}

func NewCachedSettingsRepo(inner repository.SettingsRepository, cli RedisClient, ttl time.Duration) *cachedSettingsRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &cachedSettingsRepo{inner: inner, cli: cli, ttl: ttl}
}

func (r *cachedSettingsRepo) settingsKey(ctx context.Context, scope int) string {
	ver, err := r.cli.Get(ctx, settingsVersionKey)
	if err != nil || ver == "" {
		ver = "0"
	}
	return fmt.Sprintf("zp:settings:%s:%d", ver, scope)
}

func (r *cachedSettingsRepo) bumpVersion(ctx context.Context) {
	_ = r.cli.Set(ctx, settingsVersionKey, uuid.NewString(), 0)
}

func (r *cachedSettingsRepo) Load(ctx context.Context, scope int) (*model.GatewaySettings, error) {
	key := r.settingsKey(ctx, scope)
	if raw, err := r.cli.Get(ctx, key); err == nil {
		var s model.GatewaySettings
		if jerr := json.Unmarshal([]byte(raw), &s); jerr == nil {
			metrics.IncCacheRequest("settings", "hit")
			return &s, nil
		}
	}
	metrics.IncCacheRequest("settings", "miss")

	s, err := r.inner.Load(ctx, scope)
	if err != nil {
		return nil, err
	}
	if raw, jerr := json.Marshal(s); jerr == nil {
		_ = r.cli.Set(ctx, key, raw, r.ttl)
	}
	return s, nil
}

func (r *cachedSettingsRepo) Save(ctx context.Context, scope int, s *model.GatewaySettings, ov *model.SettingsOverride) error {
	if err := r.inner.Save(ctx, scope, s, ov); err != nil {
		return err
	}
	r.invalidate(ctx, scope)
	return nil
}

func (r *cachedSettingsRepo) Delete(ctx context.Context, scope int) error {
	if err := r.inner.Delete(ctx, scope); err != nil {
		return err
	}
	r.invalidate(ctx, scope)
	return nil
}

func (r *cachedSettingsRepo) invalidate(ctx context.Context, scope int) {
	_ = r.cli.Del(ctx, r.settingsKey(ctx, scope))
	if scope == 0 {
		r.bumpVersion(ctx)
	}
}
