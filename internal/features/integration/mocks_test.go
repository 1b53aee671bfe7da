package integration

import (
	"context"
	"sync"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/features/settings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockConnectionRepo struct {
	mu           sync.Mutex
	Conns        map[string]*Connection // keyed by tenant
	TokenUpdates []TokenUpdate
	Deleted      []primitive.ObjectID
}

func NewMockConnectionRepo() *MockConnectionRepo {
	return &MockConnectionRepo{Conns: map[string]*Connection{}}
}

func (m *MockConnectionRepo) GetByTenant(ctx context.Context, tenantID, provider string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conns[tenantID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MockConnectionRepo) GetByID(ctx context.Context, id string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Conns {
		if c.ID.Hex() == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockConnectionRepo) Upsert(ctx context.Context, conn *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Conns[conn.TenantID]
	if !ok {
		conn.ID = primitive.NewObjectID()
		conn.SyncConfig = DefaultSyncConfig()
		conn.FieldMapping = map[string]string{}
		cp := *conn
		m.Conns[conn.TenantID] = &cp
		return nil
	}
	existing.AccessToken = conn.AccessToken
	existing.RefreshToken = conn.RefreshToken
	existing.TokenExpiresAt = conn.TokenExpiresAt
	existing.APIDomain = conn.APIDomain
	existing.CompanyID = conn.CompanyID
	existing.CompanyName = conn.CompanyName
	existing.IsActive = true
	*conn = *existing
	return nil
}

func (m *MockConnectionRepo) UpdateTokens(ctx context.Context, id primitive.ObjectID, u TokenUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenUpdates = append(m.TokenUpdates, u)
	for _, c := range m.Conns {
		if c.ID == id {
			c.AccessToken = u.AccessToken
			c.RefreshToken = u.RefreshToken
			c.TokenExpiresAt = u.ExpiresAt
		}
	}
	return nil
}

func (m *MockConnectionRepo) UpdateSyncStatus(ctx context.Context, id primitive.ObjectID, lastSyncAt *time.Time, status, syncErr string) error {
	return nil
}

func (m *MockConnectionRepo) UpdateFieldMapping(ctx context.Context, id primitive.ObjectID, mapping map[string]string) error {
	return nil
}

func (m *MockConnectionRepo) UpdateSyncConfig(ctx context.Context, id primitive.ObjectID, cfg SyncConfig) error {
	return nil
}

func (m *MockConnectionRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	for tenant, c := range m.Conns {
		if c.ID == id {
			delete(m.Conns, tenant)
		}
	}
	return nil
}

func (m *MockConnectionRepo) ListAutoSync(ctx context.Context) ([]Connection, error) {
	return nil, nil
}

func (m *MockConnectionRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockStateStore struct {
	States map[string]*OAuthState
}

func (m *MockStateStore) Save(ctx context.Context, state *OAuthState) error {
	if m.States == nil {
		m.States = map[string]*OAuthState{}
	}
	m.States[state.State] = state
	return nil
}

func (m *MockStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	st, ok := m.States[state]
	if !ok {
		return nil, nil
	}
	delete(m.States, state)
	return st, nil
}

func (m *MockStateStore) EnsureIndexes(ctx context.Context) error { return nil }

type MockSettingsRepo struct {
	App *settings.OAuthAppSettings
}

func (m *MockSettingsRepo) GetByTenant(ctx context.Context, tenantID string, provider settings.Provider) (*settings.OAuthAppSettings, error) {
	return m.App, nil
}

func (m *MockSettingsRepo) Upsert(ctx context.Context, s *settings.OAuthAppSettings) error {
	m.App = s
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

type MockPurger struct {
	Purged []primitive.ObjectID
}

func (m *MockPurger) DeleteByConnection(ctx context.Context, connectionID primitive.ObjectID) error {
	m.Purged = append(m.Purged, connectionID)
	return nil
}

type staticResolver struct {
	app *AppConfig
	err error
}

func (r staticResolver) Resolve(ctx context.Context, tenantID string) (*AppConfig, error) {
	return r.app, r.err
}
