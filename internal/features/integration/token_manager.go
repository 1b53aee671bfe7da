package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RefreshMargin is how long before expiry a token is already treated as expired.
const RefreshMargin = 5 * time.Minute

// defaultTokenLifetime is assumed when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

type TokenProvider interface {
	// EnsureValidToken returns conn unchanged when its token is valid for more
	// than RefreshMargin, otherwise a refreshed copy.
	EnsureValidToken(ctx context.Context, conn *Connection) (*Connection, error)
	// ForceRefresh refreshes regardless of the stored expiry.
	ForceRefresh(ctx context.Context, conn *Connection) (*Connection, error)
}

type TokenManager struct {
	repo       ConnectionRepository
	resolver   ConfigResolver
	logger     *zap.Logger
	httpClient *http.Client
	group      singleflight.Group
	now        func() time.Time
}

func NewTokenManager(repo ConnectionRepository, resolver ConfigResolver, logger *zap.Logger) TokenProvider {
	return &TokenManager{
		repo:     repo,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *TokenManager) EnsureValidToken(ctx context.Context, conn *Connection) (*Connection, error) {
	if conn.TokenExpiresAt.Sub(m.now()) > RefreshMargin {
		return conn, nil
	}
	return m.refresh(ctx, conn, false)
}

func (m *TokenManager) ForceRefresh(ctx context.Context, conn *Connection) (*Connection, error) {
	return m.refresh(ctx, conn, true)
}

type refreshResult struct {
	update TokenUpdate
	reused bool
}

// refresh exchanges the refresh token. Concurrent refreshes of one connection
// share a single token request, and a caller holding a copy older than the
// stored tokens gets the stored ones instead of a second exchange. A forced
// refresh only reuses stored tokens that differ from the rejected one.
func (m *TokenManager) refresh(ctx context.Context, conn *Connection, force bool) (*Connection, error) {
	v, err, shared := m.group.Do(conn.ID.Hex(), func() (interface{}, error) {
		stored, err := m.repo.GetByID(ctx, conn.ID.Hex())
		if err != nil {
			return nil, fmt.Errorf("load connection: %w", err)
		}
		refreshToken := conn.RefreshToken
		if stored != nil {
			if stored.TokenExpiresAt.Sub(m.now()) > RefreshMargin && (!force || stored.AccessToken != conn.AccessToken) {
				return refreshResult{reused: true, update: TokenUpdate{
					AccessToken:  stored.AccessToken,
					RefreshToken: stored.RefreshToken,
					ExpiresAt:    stored.TokenExpiresAt,
					APIDomain:    stored.APIDomain,
				}}, nil
			}
			if stored.RefreshToken != "" {
				refreshToken = stored.RefreshToken
			}
		}

		app, err := m.resolver.Resolve(ctx, conn.TenantID)
		if err != nil {
			return nil, err
		}

		if m.httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
		}
		// An empty access token forces the token source to refresh.
		src := app.OAuth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		tok, err := src.Token()
		if err != nil {
			return nil, fmt.Errorf("refresh pipedrive token: %w", err)
		}

		update := TokenUpdate{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.Expiry,
		}
		if update.RefreshToken == "" {
			update.RefreshToken = refreshToken
		}
		if update.ExpiresAt.IsZero() {
			update.ExpiresAt = m.now().Add(defaultTokenLifetime)
		}
		if domain, ok := tok.Extra("api_domain").(string); ok {
			update.APIDomain = domain
		}

		if err := m.repo.UpdateTokens(ctx, conn.ID, update); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		return refreshResult{update: update}, nil
	})
	if err != nil {
		m.logger.Warn("Token refresh failed",
			zap.String("tenant_id", conn.TenantID),
			zap.String("connection_id", conn.ID.Hex()),
			zap.Error(err))
		return nil, err
	}

	res := v.(refreshResult)
	update := res.update
	refreshed := *conn
	refreshed.AccessToken = update.AccessToken
	refreshed.RefreshToken = update.RefreshToken
	refreshed.TokenExpiresAt = update.ExpiresAt
	if update.APIDomain != "" {
		refreshed.APIDomain = update.APIDomain
	}

	m.logger.Info("Token refreshed",
		zap.String("tenant_id", conn.TenantID),
		zap.String("connection_id", conn.ID.Hex()),
		zap.Time("expires_at", update.ExpiresAt),
		zap.Bool("shared", shared),
		zap.Bool("reused", res.reused))
	return &refreshed, nil
}
