package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"storeadmin/internal/domain"
)

// GetSettings returns the settings row.
func (d *DB) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, store_name, support_email, loyalty_program_enabled, maintenance_mode FROM app_settings ORDER BY id LIMIT 1;",
	).Scan(&s.ID, &s.StoreName, &s.SupportEmail, &s.LoyaltyProgramEnabled, &s.MaintenanceMode)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// SaveSettings replaces the settings row, creating it on first save.
func (d *DB) SaveSettings(ctx context.Context, s domain.Settings) (*domain.Settings, error) {
	cur, err := d.GetSettings(ctx)
	switch {
	case err == nil:
		s.ID = cur.ID
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO app_settings(id, store_name, support_email, loyalty_program_enabled, maintenance_mode)
		 VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET store_name=EXCLUDED.store_name, support_email=EXCLUDED.support_email,
		 loyalty_program_enabled=EXCLUDED.loyalty_program_enabled, maintenance_mode=EXCLUDED.maintenance_mode;`,
		s.ID, s.StoreName, s.SupportEmail, s.LoyaltyProgramEnabled, s.MaintenanceMode)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}
