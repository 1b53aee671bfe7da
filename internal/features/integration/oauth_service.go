package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/features/audit"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// StateTTL bounds the time between authorize and callback.
const StateTTL = 10 * time.Minute

// DefaultAPIDomain is used when the token response carries no api_domain.
const DefaultAPIDomain = "https://api.pipedrive.com"

// RunHistoryPurger removes the sync runs of a connection on disconnect.
type RunHistoryPurger interface {
	DeleteByConnection(ctx context.Context, connectionID primitive.ObjectID) error
}

type OAuthService interface {
	AuthorizationURL(ctx context.Context, tenantID string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*Connection, error)
	Disconnect(ctx context.Context, tenantID string) error
	Status(ctx context.Context, tenantID string) (*ConnectionStatus, error)
	GetConnection(ctx context.Context, tenantID string) (*Connection, error)
}

type OAuthServiceImpl struct {
	connections ConnectionRepository
	states      StateStore
	resolver    ConfigResolver
	clients     *pipedrive.Factory
	runs        RunHistoryPurger
	audit       audit.AuditService
	logger      *zap.Logger
	httpClient  *http.Client
	now         func() time.Time
}

func NewOAuthService(
	connections ConnectionRepository,
	states StateStore,
	resolver ConfigResolver,
	clients *pipedrive.Factory,
	runs RunHistoryPurger,
	auditService audit.AuditService,
	logger *zap.Logger,
) OAuthService {
	return &OAuthServiceImpl{
		connections: connections,
		states:      states,
		resolver:    resolver,
		clients:     clients,
		runs:        runs,
		audit:       auditService,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *OAuthServiceImpl) AuthorizationURL(ctx context.Context, tenantID string) (string, error) {
	app, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return "", err
	}

	state := &OAuthState{
		State:     uuid.NewString(),
		TenantID:  tenantID,
		ExpiresAt: s.now().Add(StateTTL),
	}
	if err := s.states.Save(ctx, state); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}

	return app.OAuth2Config().AuthCodeURL(state.State), nil
}

func (s *OAuthServiceImpl) HandleCallback(ctx context.Context, code, state string) (*Connection, error) {
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}

	pending, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}
	if pending == nil || !s.now().Before(pending.ExpiresAt) {
		return nil, ErrInvalidState
	}

	app, err := s.resolver.Resolve(ctx, pending.TenantID)
	if err != nil {
		return nil, err
	}

	oauthCtx := ctx
	if s.httpClient != nil {
		oauthCtx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	tok, err := app.OAuth2Config().Exchange(oauthCtx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	apiDomain, _ := tok.Extra("api_domain").(string)
	if apiDomain == "" {
		apiDomain = DefaultAPIDomain
	}

	user, err := s.clients.New(tok.AccessToken, apiDomain).CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch pipedrive user: %w", err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultTokenLifetime)
	}

	conn := &Connection{
		TenantID:       pending.TenantID,
		Provider:       ProviderPipedrive,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: expiresAt,
		APIDomain:      apiDomain,
		CompanyID:      user.CompanyID,
		CompanyName:    user.CompanyName,
		IsActive:       true,
	}
	if err := s.connections.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	auditCtx := context.WithValue(ctx, common_models.TenantIDKey, conn.TenantID)
	_ = s.audit.LogChange(auditCtx, common_models.AuditActionConnect, "integration", conn.ID.Hex(), map[string]common_models.Change{
		"company": {New: conn.CompanyName},
	})

	s.logger.Info("Pipedrive connected",
		zap.String("tenant_id", conn.TenantID),
		zap.String("connection_id", conn.ID.Hex()),
		zap.Int64("company_id", conn.CompanyID),
		zap.String("source", app.Source))
	return conn, nil
}

func (s *OAuthServiceImpl) GetConnection(ctx context.Context, tenantID string) (*Connection, error) {
	conn, err := s.connections.GetByTenant(ctx, tenantID, ProviderPipedrive)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn, nil
}

func (s *OAuthServiceImpl) Disconnect(ctx context.Context, tenantID string) error {
	conn, err := s.GetConnection(ctx, tenantID)
	if err != nil {
		return err
	}

	if err := s.runs.DeleteByConnection(ctx, conn.ID); err != nil {
		return fmt.Errorf("delete sync history: %w", err)
	}
	if err := s.connections.Delete(ctx, conn.ID); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	_ = s.audit.LogChange(ctx, common_models.AuditActionDisconnect, "integration", conn.ID.Hex(), map[string]common_models.Change{
		"company": {Old: conn.CompanyName},
	})
	s.logger.Info("Pipedrive disconnected",
		zap.String("tenant_id", tenantID),
		zap.String("connection_id", conn.ID.Hex()))
	return nil
}

func (s *OAuthServiceImpl) Status(ctx context.Context, tenantID string) (*ConnectionStatus, error) {
	conn, err := s.connections.GetByTenant(ctx, tenantID, ProviderPipedrive)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &ConnectionStatus{Provider: ProviderPipedrive}, nil
	}
	return &ConnectionStatus{
		Connected:       true,
		Provider:        ProviderPipedrive,
		CompanyID:       conn.CompanyID,
		CompanyName:     conn.CompanyName,
		APIDomain:       conn.APIDomain,
		IsActive:        conn.IsActive,
		AutoSyncEnabled: conn.SyncConfig.AutoSyncEnabled,
		LastSyncAt:      conn.LastSyncAt,
		LastSyncStatus:  conn.LastSyncStatus,
		LastSyncError:   conn.LastSyncError,
	}, nil
}
