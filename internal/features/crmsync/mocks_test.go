package crmsync

import (
	"context"
	"strconv"
	"sync"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/features/customer"
	"go-crm-sync/internal/features/integration"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockConnectionRepo struct {
	mu       sync.Mutex
	Conns    map[primitive.ObjectID]*integration.Connection
	Statuses []string
	Configs  []integration.SyncConfig
}

func NewMockConnectionRepo(conns ...*integration.Connection) *MockConnectionRepo {
	m := &MockConnectionRepo{Conns: map[primitive.ObjectID]*integration.Connection{}}
	for _, c := range conns {
		m.Conns[c.ID] = c
	}
	return m
}

func (m *MockConnectionRepo) GetByTenant(ctx context.Context, tenantID, provider string) (*integration.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Conns {
		if c.TenantID == tenantID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockConnectionRepo) GetByID(ctx context.Context, id string) (*integration.Connection, error) {
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

func (m *MockConnectionRepo) Upsert(ctx context.Context, conn *integration.Connection) error {
	return nil
}

func (m *MockConnectionRepo) UpdateTokens(ctx context.Context, id primitive.ObjectID, u integration.TokenUpdate) error {
	return nil
}

func (m *MockConnectionRepo) UpdateSyncStatus(ctx context.Context, id primitive.ObjectID, lastSyncAt *time.Time, status, syncErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, status)
	if c, ok := m.Conns[id]; ok {
		if lastSyncAt != nil {
			at := *lastSyncAt
			c.LastSyncAt = &at
		}
		c.LastSyncStatus = status
		c.LastSyncError = syncErr
	}
	return nil
}

func (m *MockConnectionRepo) UpdateFieldMapping(ctx context.Context, id primitive.ObjectID, mapping map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Conns[id]; ok {
		c.FieldMapping = mapping
	}
	return nil
}

func (m *MockConnectionRepo) UpdateSyncConfig(ctx context.Context, id primitive.ObjectID, cfg integration.SyncConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Configs = append(m.Configs, cfg)
	if c, ok := m.Conns[id]; ok {
		c.SyncConfig = cfg
	}
	return nil
}

func (m *MockConnectionRepo) Delete(ctx context.Context, id primitive.ObjectID) error { return nil }

func (m *MockConnectionRepo) ListAutoSync(ctx context.Context) ([]integration.Connection, error) {
	return nil, nil
}

func (m *MockConnectionRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockSyncRunRepo struct {
	mu   sync.Mutex
	Runs map[primitive.ObjectID]SyncRun
}

func NewMockSyncRunRepo() *MockSyncRunRepo {
	return &MockSyncRunRepo{Runs: map[primitive.ObjectID]SyncRun{}}
}

func (m *MockSyncRunRepo) Create(ctx context.Context, run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = primitive.NewObjectID()
	m.Runs[run.ID] = *run
	return nil
}

func (m *MockSyncRunRepo) Update(ctx context.Context, run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs[run.ID] = *run
	return nil
}

func (m *MockSyncRunRepo) GetByID(ctx context.Context, id string) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	run, ok := m.Runs[oid]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *MockSyncRunRepo) ListByConnection(ctx context.Context, connectionID primitive.ObjectID, limit int64) ([]SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncRun
	for _, run := range m.Runs {
		if run.ConnectionID == connectionID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *MockSyncRunRepo) DeleteByConnection(ctx context.Context, connectionID primitive.ObjectID) error {
	return nil
}

func (m *MockSyncRunRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockCustomerRepo struct {
	Customers map[int64]*customer.Customer
	Creates   int
	Updates   int
}

func NewMockCustomerRepo() *MockCustomerRepo {
	return &MockCustomerRepo{Customers: map[int64]*customer.Customer{}}
}

func (m *MockCustomerRepo) FindByExternalID(ctx context.Context, tenantID string, externalID int64) (*customer.Customer, error) {
	c, ok := m.Customers[externalID]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MockCustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	m.Creates++
	c.ID = primitive.NewObjectID()
	cp := *c
	m.Customers[c.ExternalID] = &cp
	return nil
}

func (m *MockCustomerRepo) Update(ctx context.Context, c *customer.Customer) error {
	m.Updates++
	cp := *c
	m.Customers[c.ExternalID] = &cp
	return nil
}

func (m *MockCustomerRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockContactRepo struct {
	Contacts map[int64]*customer.Contact
	Creates  int
	Updates  int
}

func NewMockContactRepo() *MockContactRepo {
	return &MockContactRepo{Contacts: map[int64]*customer.Contact{}}
}

func (m *MockContactRepo) FindByExternalID(ctx context.Context, tenantID string, externalID int64) (*customer.Contact, error) {
	c, ok := m.Contacts[externalID]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MockContactRepo) Create(ctx context.Context, c *customer.Contact) error {
	m.Creates++
	c.ID = primitive.NewObjectID()
	cp := *c
	m.Contacts[c.ExternalID] = &cp
	return nil
}

func (m *MockContactRepo) Update(ctx context.Context, c *customer.Contact) error {
	m.Updates++
	cp := *c
	m.Contacts[c.ExternalID] = &cp
	return nil
}

func (m *MockContactRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockTokenProvider struct {
	ForceRefreshes int
	ForceErr       error
}

func (m *MockTokenProvider) EnsureValidToken(ctx context.Context, conn *integration.Connection) (*integration.Connection, error) {
	return conn, nil
}

func (m *MockTokenProvider) ForceRefresh(ctx context.Context, conn *integration.Connection) (*integration.Connection, error) {
	m.ForceRefreshes++
	if m.ForceErr != nil {
		return nil, m.ForceErr
	}
	cp := *conn
	cp.AccessToken = "fresh"
	return &cp, nil
}

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

// fakeRemote serves fixed records, paged by params.Limit with the item
// offset as cursor.
type fakeRemote struct {
	Token        string
	Orgs         []pipedrive.Record
	Persons      []pipedrive.Record
	OrgFields    []pipedrive.Field
	PersonDefs   []pipedrive.Field

	OrgFieldsErr error
	// OrgErrs are returned, in order, by the first list organization calls.
	OrgErrs []error
	// RejectToken makes every call with this access token return ErrUnauthorized.
	RejectToken string

	OrgParams    []pipedrive.ListParams
	OrgListCalls int
}

func (f *fakeRemote) page(ctx context.Context, all []pipedrive.Record, params pipedrive.ListParams) (pipedrive.RecordPage, error) {
	if err := ctx.Err(); err != nil {
		return pipedrive.RecordPage{}, err
	}
	if f.RejectToken != "" && f.Token == f.RejectToken {
		return pipedrive.RecordPage{}, pipedrive.ErrUnauthorized
	}
	start := 0
	if params.Cursor != "" {
		start, _ = strconv.Atoi(params.Cursor)
	}
	end := len(all)
	if params.Limit > 0 && start+params.Limit < end {
		end = start + params.Limit
	}
	page := pipedrive.RecordPage{Items: all[start:end]}
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeRemote) ListOrganizations(ctx context.Context, params pipedrive.ListParams) (pipedrive.RecordPage, error) {
	f.OrgListCalls++
	f.OrgParams = append(f.OrgParams, params)
	if len(f.OrgErrs) > 0 {
		err := f.OrgErrs[0]
		f.OrgErrs = f.OrgErrs[1:]
		return pipedrive.RecordPage{}, err
	}
	return f.page(ctx, f.Orgs, params)
}

func (f *fakeRemote) ListPersons(ctx context.Context, params pipedrive.ListParams) (pipedrive.RecordPage, error) {
	return f.page(ctx, f.Persons, params)
}

func (f *fakeRemote) OrganizationFields(ctx context.Context, start string) (pipedrive.FieldPage, error) {
	if err := ctx.Err(); err != nil {
		return pipedrive.FieldPage{}, err
	}
	if f.OrgFieldsErr != nil {
		return pipedrive.FieldPage{}, f.OrgFieldsErr
	}
	return pipedrive.FieldPage{Items: f.OrgFields}, nil
}

func (f *fakeRemote) PersonFields(ctx context.Context, start string) (pipedrive.FieldPage, error) {
	if err := ctx.Err(); err != nil {
		return pipedrive.FieldPage{}, err
	}
	return pipedrive.FieldPage{Items: f.PersonDefs}, nil
}

func (f *fakeRemote) SetAccessToken(token string) { f.Token = token }

type fakeClients struct {
	remote *fakeRemote
}

func (f fakeClients) NewClient(accessToken, apiDomain string) RemoteClient {
	f.remote.Token = accessToken
	return f.remote
}
