package domain

import "context"

// Settings holds store-wide configuration edited from the console.
type Settings struct {
	ID                    string `json:"id"`
	StoreName             string `json:"store_name"`
	SupportEmail          string `json:"support_email"`
	LoyaltyProgramEnabled bool   `json:"loyalty_program_enabled"`
	MaintenanceMode       bool   `json:"maintenance_mode"`
}

// SettingsRepository is the port for the single settings row.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) (*Settings, error)
}
