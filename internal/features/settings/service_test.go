package settings

import (
	"context"
	"errors"
	"testing"

	common_models "go-crm-sync/internal/common/models"
)

type MockSettingsRepo struct {
	Stored *OAuthAppSettings
}

func (m *MockSettingsRepo) GetByTenant(ctx context.Context, tenantID string, provider Provider) (*OAuthAppSettings, error) {
	if m.Stored == nil || m.Stored.TenantID != tenantID || m.Stored.Provider != provider {
		return nil, nil
	}
	stored := *m.Stored
	return &stored, nil
}

func (m *MockSettingsRepo) Upsert(ctx context.Context, settings *OAuthAppSettings) error {
	m.Stored = settings
	return nil
}

func (m *MockSettingsRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockAuditService struct {
	Actions []common_models.AuditAction
}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	m.Actions = append(m.Actions, action)
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func TestUpdateOAuthConfig_KeepsSecretWhenOmitted(t *testing.T) {
	repo := &MockSettingsRepo{}
	auditSvc := &MockAuditService{}
	svc := NewSettingsService(repo, auditSvc)
	ctx := context.Background()

	err := svc.UpdateOAuthConfig(ctx, "t-1", ProviderPipedrive, OAuthAppConfig{IsEnabled: true, ClientID: "cid", ClientSecret: "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = svc.UpdateOAuthConfig(ctx, "t-1", ProviderPipedrive, OAuthAppConfig{IsEnabled: true, ClientID: "cid-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.Stored.ClientSecret != "s3cret" || repo.Stored.ClientID != "cid-2" {
		t.Fatalf("unexpected stored settings %+v", repo.Stored)
	}
	if len(auditSvc.Actions) != 2 {
		t.Errorf("expected 2 audit entries, got %d", len(auditSvc.Actions))
	}
}

func TestGetOAuthConfig_MasksSecret(t *testing.T) {
	repo := &MockSettingsRepo{Stored: &OAuthAppSettings{TenantID: "t-1", Provider: ProviderPipedrive, ClientID: "cid", ClientSecret: "s3cret", IsEnabled: true}}
	svc := NewSettingsService(repo, &MockAuditService{})

	cfg, err := svc.GetOAuthConfig(context.Background(), "t-1", ProviderPipedrive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClientSecret != "" || !cfg.HasClientSecret || cfg.ClientID != "cid" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestUpdateOAuthConfig_RequiresClientIDWhenEnabled(t *testing.T) {
	svc := NewSettingsService(&MockSettingsRepo{}, &MockAuditService{})

	err := svc.UpdateOAuthConfig(context.Background(), "t-1", ProviderPipedrive, OAuthAppConfig{IsEnabled: true})
	if !errors.Is(err, ErrMissingClientID) {
		t.Fatalf("expected ErrMissingClientID, got %v", err)
	}
}
