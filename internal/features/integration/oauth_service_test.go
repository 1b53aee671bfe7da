package integration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"go-crm-sync/internal/config"
	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/features/settings"

	"go.uber.org/zap"
)

// providerServer fakes both the OAuth token endpoint and the REST API.
type providerServer struct {
	srv         *httptest.Server
	tokenCalls  atomic.Int32
	lastGrant   atomic.Value
	accessToken string
}

func newProviderServer(t *testing.T) *providerServer {
	t.Helper()
	p := &providerServer{accessToken: "access-1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		_ = r.ParseForm()
		p.lastGrant.Store(r.PostForm.Get("grant_type"))
		if user, _, ok := r.BasicAuth(); !ok || user != "cid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + p.accessToken + `","refresh_token":"refresh-2","token_type":"Bearer","expires_in":3600,"api_domain":"` + p.srv.URL + `"}`))
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":1,"company_id":77,"company_name":"Acme Ltd"}}`))
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *providerServer) app() *AppConfig {
	return &AppConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/callback",
		AuthURL:      p.srv.URL + "/oauth/authorize",
		TokenURL:     p.srv.URL + "/oauth/token",
		Source:       SourceEnvironment,
	}
}

func newOAuthService(p *providerServer, repo *MockConnectionRepo, states *MockStateStore) (*OAuthServiceImpl, *MockAuditService, *MockPurger) {
	auditSvc := &MockAuditService{}
	purger := &MockPurger{}
	svc := NewOAuthService(repo, states, staticResolver{app: p.app()}, pipedrive.NewFactory(), purger, auditSvc, zap.NewNop()).(*OAuthServiceImpl)
	return svc, auditSvc, purger
}

func TestAuthorizationURL_BindsStateToTenant(t *testing.T) {
	p := newProviderServer(t)
	states := &MockStateStore{}
	svc, _, _ := newOAuthService(p, NewMockConnectionRepo(), states)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	raw, err := svc.AuthorizationURL(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	state := u.Query().Get("state")
	if u.Query().Get("client_id") != "cid" || state == "" {
		t.Fatalf("unexpected authorize url %s", raw)
	}
	st := states.States[state]
	if st == nil || st.TenantID != "t-1" || !st.ExpiresAt.Equal(now.Add(StateTTL)) {
		t.Fatalf("unexpected stored state %+v", st)
	}
}

func TestHandleCallback_InvalidState(t *testing.T) {
	p := newProviderServer(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	states := &MockStateStore{States: map[string]*OAuthState{
		"expired": {State: "expired", TenantID: "t-1", ExpiresAt: now.Add(-time.Second)},
	}}
	svc, _, _ := newOAuthService(p, NewMockConnectionRepo(), states)
	svc.now = func() time.Time { return now }

	for _, state := range []string{"unknown", "expired", ""} {
		if _, err := svc.HandleCallback(context.Background(), "code", state); !errors.Is(err, ErrInvalidState) {
			t.Errorf("state %q: expected ErrInvalidState, got %v", state, err)
		}
	}
	if p.tokenCalls.Load() != 0 {
		t.Errorf("expected no token exchange, got %d", p.tokenCalls.Load())
	}
}

func TestHandleCallback_CreatesThenReplacesConnection(t *testing.T) {
	p := newProviderServer(t)
	repo := NewMockConnectionRepo()
	states := &MockStateStore{}
	svc, auditSvc, _ := newOAuthService(p, repo, states)
	ctx := context.Background()

	connect := func() *Connection {
		t.Helper()
		raw, err := svc.AuthorizationURL(ctx, "t-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		u, _ := url.Parse(raw)
		conn, err := svc.HandleCallback(ctx, "code", u.Query().Get("state"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return conn
	}

	first := connect()
	if first.CompanyID != 77 || first.CompanyName != "Acme Ltd" || first.APIDomain != p.srv.URL {
		t.Fatalf("unexpected connection %+v", first)
	}
	if got, _ := p.lastGrant.Load().(string); got != "authorization_code" {
		t.Errorf("expected authorization_code grant, got %q", got)
	}

	p.accessToken = "access-2"
	second := connect()
	if second.ID != first.ID {
		t.Fatalf("expected the same connection to be updated, got %s and %s", first.ID.Hex(), second.ID.Hex())
	}
	if len(repo.Conns) != 1 || repo.Conns["t-1"].AccessToken != "access-2" {
		t.Fatalf("expected one connection with replaced token, got %+v", repo.Conns)
	}
	if len(auditSvc.Actions) != 2 {
		t.Errorf("expected 2 audit entries, got %d", len(auditSvc.Actions))
	}
}

func TestHandleCallback_StateIsSingleUse(t *testing.T) {
	p := newProviderServer(t)
	svc, _, _ := newOAuthService(p, NewMockConnectionRepo(), &MockStateStore{})
	ctx := context.Background()

	raw, _ := svc.AuthorizationURL(ctx, "t-1")
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	if _, err := svc.HandleCallback(ctx, "code", state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.HandleCallback(ctx, "code", state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on reuse, got %v", err)
	}
}

func TestDisconnect(t *testing.T) {
	p := newProviderServer(t)
	repo := NewMockConnectionRepo()
	svc, _, purger := newOAuthService(p, repo, &MockStateStore{})
	ctx := context.Background()

	if err := svc.Disconnect(ctx, "t-1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	conn := &Connection{TenantID: "t-1", Provider: ProviderPipedrive}
	_ = repo.Upsert(ctx, conn)

	if err := svc.Disconnect(ctx, "t-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(purger.Purged) != 1 || purger.Purged[0] != conn.ID {
		t.Errorf("expected sync runs of %s to be purged, got %v", conn.ID.Hex(), purger.Purged)
	}
	if len(repo.Conns) != 0 {
		t.Errorf("expected connection to be deleted")
	}

	status, err := svc.Status(ctx, "t-1")
	if err != nil || status.Connected {
		t.Fatalf("expected disconnected status, got %+v (%v)", status, err)
	}
}

func TestTokenManager_RefreshThreshold(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expiresIn   time.Duration
		wantRefresh bool
	}{
		{name: "expires in 4m59s", expiresIn: 4*time.Minute + 59*time.Second, wantRefresh: true},
		{name: "expired", expiresIn: -time.Hour, wantRefresh: true},
		{name: "expires in 6m", expiresIn: 6 * time.Minute, wantRefresh: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProviderServer(t)
			p.accessToken = "access-new"
			repo := NewMockConnectionRepo()
			conn := &Connection{TenantID: "t-1", Provider: ProviderPipedrive, AccessToken: "access-old", RefreshToken: "refresh-1"}
			_ = repo.Upsert(context.Background(), conn)
			conn.TokenExpiresAt = now.Add(tt.expiresIn)

			m := NewTokenManager(repo, staticResolver{app: p.app()}, zap.NewNop()).(*TokenManager)
			m.now = func() time.Time { return now }

			got, err := m.EnsureValidToken(context.Background(), conn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !tt.wantRefresh {
				if p.tokenCalls.Load() != 0 || got.AccessToken != "access-old" {
					t.Fatalf("expected no refresh, got %d calls and token %q", p.tokenCalls.Load(), got.AccessToken)
				}
				return
			}

			if p.tokenCalls.Load() != 1 {
				t.Fatalf("expected one refresh call, got %d", p.tokenCalls.Load())
			}
			if g, _ := p.lastGrant.Load().(string); g != "refresh_token" {
				t.Errorf("expected refresh_token grant, got %q", g)
			}
			if got.AccessToken != "access-new" || got.RefreshToken != "refresh-2" {
				t.Errorf("unexpected refreshed tokens %q / %q", got.AccessToken, got.RefreshToken)
			}
			if got.APIDomain != p.srv.URL {
				t.Errorf("expected api domain from token response, got %q", got.APIDomain)
			}
			if len(repo.TokenUpdates) != 1 {
				t.Errorf("expected refreshed token to be persisted")
			}
			if conn.AccessToken != "access-old" {
				t.Errorf("input connection was modified")
			}
		})
	}
}

func TestTokenManager_ReusesTokensRefreshedMeanwhile(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		force     bool
		heldToken string
		wantCalls int32
		wantToken string
	}{
		{name: "stale copy near expiry", heldToken: "access-old", wantCalls: 0, wantToken: "access-stored"},
		{name: "forced with an already replaced token", force: true, heldToken: "access-old", wantCalls: 0, wantToken: "access-stored"},
		{name: "forced with the stored token", force: true, heldToken: "access-stored", wantCalls: 1, wantToken: "access-new"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProviderServer(t)
			p.accessToken = "access-new"
			repo := NewMockConnectionRepo()
			stored := &Connection{TenantID: "t-1", Provider: ProviderPipedrive, AccessToken: "access-stored", RefreshToken: "refresh-stored", TokenExpiresAt: now.Add(time.Hour)}
			_ = repo.Upsert(context.Background(), stored)

			held := *stored
			held.AccessToken = tt.heldToken
			held.RefreshToken = "refresh-old"
			held.TokenExpiresAt = now.Add(time.Minute)

			m := NewTokenManager(repo, staticResolver{app: p.app()}, zap.NewNop()).(*TokenManager)
			m.now = func() time.Time { return now }

			var got *Connection
			var err error
			if tt.force {
				got, err = m.ForceRefresh(context.Background(), &held)
			} else {
				got, err = m.EnsureValidToken(context.Background(), &held)
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.tokenCalls.Load() != tt.wantCalls {
				t.Errorf("expected %d token calls, got %d", tt.wantCalls, p.tokenCalls.Load())
			}
			if got.AccessToken != tt.wantToken {
				t.Errorf("access token = %q, want %q", got.AccessToken, tt.wantToken)
			}
			if got.RefreshToken == "refresh-old" {
				t.Error("held refresh token must not survive")
			}
		})
	}
}

func TestTokenManager_RefreshFailurePropagates(t *testing.T) {
	p := newProviderServer(t)
	app := p.app()
	app.ClientID = "wrong"
	repo := NewMockConnectionRepo()
	conn := &Connection{TenantID: "t-1", Provider: ProviderPipedrive, RefreshToken: "refresh-1"}
	_ = repo.Upsert(context.Background(), conn)

	m := NewTokenManager(repo, staticResolver{app: app}, zap.NewNop())
	if _, err := m.ForceRefresh(context.Background(), conn); err == nil {
		t.Fatal("expected refresh error")
	}
	if len(repo.TokenUpdates) != 0 {
		t.Error("expected nothing to be persisted")
	}
}

func TestConfigResolver_Order(t *testing.T) {
	envCfg := &config.Config{
		PipedriveClientID:     "env-id",
		PipedriveClientSecret: "env-secret",
		PipedriveRedirectURL:  "https://env/callback",
		PipedriveTokenURL:     "https://oauth/token",
	}

	tests := []struct {
		name       string
		app        *settings.OAuthAppSettings
		cfg        *config.Config
		wantID     string
		wantSource string
		wantErr    error
	}{
		{
			name:       "tenant app wins",
			app:        &settings.OAuthAppSettings{IsEnabled: true, ClientID: "t-id", ClientSecret: "t-secret"},
			cfg:        envCfg,
			wantID:     "t-id",
			wantSource: SourceTenant,
		},
		{
			name:       "disabled tenant app falls back",
			app:        &settings.OAuthAppSettings{IsEnabled: false, ClientID: "t-id", ClientSecret: "t-secret"},
			cfg:        envCfg,
			wantID:     "env-id",
			wantSource: SourceEnvironment,
		},
		{
			name:       "tenant app without secret falls back",
			app:        &settings.OAuthAppSettings{IsEnabled: true, ClientID: "t-id"},
			cfg:        envCfg,
			wantID:     "env-id",
			wantSource: SourceEnvironment,
		},
		{
			name:    "nothing configured",
			cfg:     &config.Config{},
			wantErr: ErrNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConfigResolver(&MockSettingsRepo{App: tt.app}, tt.cfg)
			got, err := r.Resolve(context.Background(), "t-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ClientID != tt.wantID || got.Source != tt.wantSource {
				t.Errorf("got %s from %s, want %s from %s", got.ClientID, got.Source, tt.wantID, tt.wantSource)
			}
			if got.RedirectURL != "https://env/callback" || got.TokenURL != "https://oauth/token" {
				t.Errorf("unexpected urls %+v", got)
			}
		})
	}
}
