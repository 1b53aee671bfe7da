package settings

import (
	"context"
	"errors"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/features/audit"
)

var ErrMissingClientID = errors.New("client_id is required when the app is enabled")

type SettingsService interface {
	GetOAuthConfig(ctx context.Context, tenantID string, provider Provider) (*OAuthAppConfig, error)
	UpdateOAuthConfig(ctx context.Context, tenantID string, provider Provider, config OAuthAppConfig) error
}

type SettingsServiceImpl struct {
	Repo         SettingsRepository
	AuditService audit.AuditService
}

func NewSettingsService(repo SettingsRepository, auditService audit.AuditService) SettingsService {
	return &SettingsServiceImpl{
		Repo:         repo,
		AuditService: auditService,
	}
}

func (s *SettingsServiceImpl) GetOAuthConfig(ctx context.Context, tenantID string, provider Provider) (*OAuthAppConfig, error) {
	settings, err := s.Repo.GetByTenant(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &OAuthAppConfig{}, nil
	}
	return &OAuthAppConfig{
		IsEnabled:       settings.IsEnabled,
		ClientID:        settings.ClientID,
		RedirectURL:     settings.RedirectURL,
		HasClientSecret: settings.ClientSecret != "",
	}, nil
}

func (s *SettingsServiceImpl) UpdateOAuthConfig(ctx context.Context, tenantID string, provider Provider, config OAuthAppConfig) error {
	if config.IsEnabled && config.ClientID == "" {
		return ErrMissingClientID
	}

	existing, err := s.Repo.GetByTenant(ctx, tenantID, provider)
	if err != nil {
		return err
	}

	secret := config.ClientSecret
	if secret == "" && existing != nil {
		secret = existing.ClientSecret
	}

	settings := &OAuthAppSettings{
		TenantID:     tenantID,
		Provider:     provider,
		IsEnabled:    config.IsEnabled,
		ClientID:     config.ClientID,
		ClientSecret: secret,
		RedirectURL:  config.RedirectURL,
		UpdatedAt:    time.Now(),
	}
	if err := s.Repo.Upsert(ctx, settings); err != nil {
		return err
	}

	var old interface{}
	if existing != nil {
		old = map[string]interface{}{"is_enabled": existing.IsEnabled, "client_id": existing.ClientID, "redirect_url": existing.RedirectURL}
	}
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionSettings, "settings", string(provider)+"_oauth_app", map[string]common_models.Change{
		"oauth_app": {
			Old: old,
			New: map[string]interface{}{"is_enabled": config.IsEnabled, "client_id": config.ClientID, "redirect_url": config.RedirectURL},
		},
	})
	return nil
}
