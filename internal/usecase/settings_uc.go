package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/repository"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

type SettingsUseCase interface {
	// Load returns the effective gateway settings for a store scope
	// (scope-0 defaults overlaid with the scope's overrides).
	Load(ctx context.Context, scope int) (*model.GatewaySettings, error)
	// Save persists settings for a scope; for scope > 0 only fields flagged
	// in ov are stored as overrides.
	Save(ctx context.Context, scope int, s *model.GatewaySettings, ov *model.SettingsOverride) error
}

type settingsUC struct {
	repo repository.SettingsRepository
	log  *zerolog.Logger
}

func NewSettingsUseCase(repo repository.SettingsRepository, logger *zerolog.Logger) *settingsUC {
	return &settingsUC{repo: repo, log: logger}
}

func (u *settingsUC) Load(ctx context.Context, scope int) (*model.GatewaySettings, error) {
	if scope < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.repo.Load(ctx, scope)
}

func (u *settingsUC) Save(ctx context.Context, scope int, s *model.GatewaySettings, ov *model.SettingsOverride) error {
	if scope < 0 || s == nil {
		return domain.ErrInvalidArgument
	}
	if s.Method == "" {
		s.Method = model.MethodREST
	}
	if s.Method != model.MethodREST && s.Method != model.MethodSOAP {
		return domain.ErrInvalidArgument
	}
	if err := u.repo.Save(ctx, scope, s, ov); err != nil {
		return err
	}
	u.log.Info().Int("scope", scope).Str("method", string(s.Method)).Bool("sandbox", s.Sandbox).Msg("gateway settings saved")
	return nil
}
