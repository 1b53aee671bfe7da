package integration

import (
	"context"

	"go-crm-sync/internal/config"
	"go-crm-sync/internal/features/settings"

	"golang.org/x/oauth2"
)

// Where an AppConfig came from.
const (
	SourceTenant      = "tenant"
	SourceEnvironment = "environment"
)

// AppConfig is the OAuth application used for one tenant.
type AppConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Source       string
}

// OAuth2Config builds the oauth2 client configuration. Pipedrive expects
// client credentials as HTTP basic auth on the token endpoint.
func (a *AppConfig) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		RedirectURL:  a.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.AuthURL,
			TokenURL:  a.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

type ConfigResolver interface {
	Resolve(ctx context.Context, tenantID string) (*AppConfig, error)
}

// ConfigResolverImpl prefers the tenant's enabled OAuth app and falls back to
// the app configured in the environment.
type ConfigResolverImpl struct {
	settings settings.SettingsRepository
	cfg      *config.Config
}

func NewConfigResolver(repo settings.SettingsRepository, cfg *config.Config) ConfigResolver {
	return &ConfigResolverImpl{settings: repo, cfg: cfg}
}

func (r *ConfigResolverImpl) Resolve(ctx context.Context, tenantID string) (*AppConfig, error) {
	tenantApp, err := r.settings.GetByTenant(ctx, tenantID, settings.ProviderPipedrive)
	if err != nil {
		return nil, err
	}

	if tenantApp != nil && tenantApp.IsEnabled && tenantApp.HasCredentials() {
		redirect := tenantApp.RedirectURL
		if redirect == "" {
			redirect = r.cfg.PipedriveRedirectURL
		}
		return &AppConfig{
			ClientID:     tenantApp.ClientID,
			ClientSecret: tenantApp.ClientSecret,
			RedirectURL:  redirect,
			AuthURL:      r.cfg.PipedriveAuthURL,
			TokenURL:     r.cfg.PipedriveTokenURL,
			Source:       SourceTenant,
		}, nil
	}

	if r.cfg.PipedriveClientID != "" && r.cfg.PipedriveClientSecret != "" {
		return &AppConfig{
			ClientID:     r.cfg.PipedriveClientID,
			ClientSecret: r.cfg.PipedriveClientSecret,
			RedirectURL:  r.cfg.PipedriveRedirectURL,
			AuthURL:      r.cfg.PipedriveAuthURL,
			TokenURL:     r.cfg.PipedriveTokenURL,
			Source:       SourceEnvironment,
		}, nil
	}

	return nil, ErrNotConfigured
}
