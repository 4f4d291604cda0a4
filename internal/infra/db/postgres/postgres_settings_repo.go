package postgres

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v4/pgxpool"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*settingsRepo)(nil)

// settingsRepo stores gateway settings as (scope, name, value) rows so a
// store scope only carries the fields it overrides; everything else falls
// through to scope 0 on load.
type settingsRepo struct{ pool *pgxpool.Pool }

func NewSettingsRepo(pool *pgxpool.Pool) *settingsRepo {
	return &settingsRepo{pool: pool}
}

const (
	keyMerchantID      = "merchant_id"
	keySandbox         = "sandbox"
	keyMethod          = "method"
	keyRialToToman     = "rial_to_toman"
	keyZarinGate       = "zarin_gate"
	keyCallbackBaseURL = "callback_base_url"
	keyStoreURL        = "store_url"
)

func (r *settingsRepo) Load(ctx context.Context, scope int) (*model.GatewaySettings, error) {
	const q = `SELECT scope, name, value FROM gateway_settings WHERE scope = 0 OR scope = $1 ORDER BY scope ASC;`
	rows, err := queryRows(ctx, r.pool, nil, q, scope)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	// Scope 0 rows come first, overrides overwrite them.
	kv := map[string]string{}
	for rows.Next() {
		var rowScope int
		var name, value string
		if err := rows.Scan(&rowScope, &name, &value); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		kv[name] = value
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}

	s := &model.GatewaySettings{
		MerchantID:      kv[keyMerchantID],
		Sandbox:         kv[keySandbox] == "true",
		Method:          model.GatewayMethod(kv[keyMethod]),
		RialToToman:     kv[keyRialToToman] == "true",
		ZarinGate:       model.ZarinGate(kv[keyZarinGate]),
		CallbackBaseURL: kv[keyCallbackBaseURL],
		StoreURL:        kv[keyStoreURL],
	}
	if s.Method == "" {
		s.Method = model.MethodREST
	}
	return s, nil
}

func (r *settingsRepo) Save(ctx context.Context, scope int, s *model.GatewaySettings, ov *model.SettingsOverride) error {
	// Scope 0 always writes every field; other scopes respect the flags.
	all := scope == 0
	if ov == nil {
		ov = &model.SettingsOverride{}
	}

	fields := []struct {
		name     string
		value    string
		override bool
	}{
		{keyMerchantID, s.MerchantID, ov.MerchantID},
		{keySandbox, strconv.FormatBool(s.Sandbox), ov.Sandbox},
		{keyMethod, string(s.Method), ov.Method},
		{keyRialToToman, strconv.FormatBool(s.RialToToman), ov.RialToToman},
		{keyZarinGate, string(s.ZarinGate), ov.ZarinGate},
		{keyCallbackBaseURL, s.CallbackBaseURL, ov.CallbackBaseURL},
		{keyStoreURL, s.StoreURL, ov.StoreURL},
	}

	const upsert = `
INSERT INTO gateway_settings (scope, name, value) VALUES ($1,$2,$3)
ON CONFLICT (scope, name) DO UPDATE SET value=$3;`
	const drop = `DELETE FROM gateway_settings WHERE scope=$1 AND name=$2;`

	for _, f := range fields {
		if all || f.override {
			if _, err := execSQL(ctx, r.pool, nil, upsert, scope, f.name, f.value); err != nil {
				return domain.ErrOperationFailed
			}
			continue
		}
		// Cleared override falls back to the scope-0 default.
		if _, err := execSQL(ctx, r.pool, nil, drop, scope, f.name); err != nil {
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *settingsRepo) Delete(ctx context.Context, scope int) error {
	const q = `DELETE FROM gateway_settings WHERE scope=$1;`
	if _, err := execSQL(ctx, r.pool, nil, q, scope); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
