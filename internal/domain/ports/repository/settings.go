package repository

import (
	"context"

	"zarinpal-payment-service/internal/domain/model"
)

// SettingsRepository stores gateway settings with per-store override
// semantics: Load(scope) returns scope-0 defaults overlaid with whatever
// fields the given scope overrides.
type SettingsRepository interface {
	Load(ctx context.Context, scope int) (*model.GatewaySettings, error)
	// Save persists the settings for a scope. For scope > 0 only the fields
	// flagged in ov are written; the rest are removed so they fall through
	// to the defaults again.
	Save(ctx context.Context, scope int, s *model.GatewaySettings, ov *model.SettingsOverride) error
	Delete(ctx context.Context, scope int) error
}
