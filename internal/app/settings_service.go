package app

import (
	"context"
	"strings"

	"storeadmin/internal/domain"
)

// SettingsService reads and writes store settings.
type SettingsService struct {
	repo domain.SettingsRepository
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(repo domain.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

// Save validates and stores settings.
func (s *SettingsService) Save(ctx context.Context, in domain.Settings) (*domain.Settings, error) {
	in.StoreName = strings.TrimSpace(in.StoreName)
	in.SupportEmail = strings.TrimSpace(in.SupportEmail)
	if in.StoreName == "" {
		return nil, invalid("store name is required")
	}
	if in.SupportEmail != "" && !strings.Contains(in.SupportEmail, "@") {
		return nil, invalid("support email is not an email address")
	}
	return s.repo.SaveSettings(ctx, in)
}
