package crmsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/config"
	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/features/audit"
	"go-crm-sync/internal/features/crmsync/mapping"
	"go-crm-sync/internal/features/customer"
	"go-crm-sync/internal/features/integration"
	"go-crm-sync/pkg/retry"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// UpdatedSinceLayout formats the incremental window sent to the provider.
const UpdatedSinceLayout = "2006-01-02T15:04:05Z"

const defaultHistoryLimit = 20

var (
	ErrSyncInProgress    = errors.New("a sync is already running for this connection")
	ErrRunNotFound       = errors.New("sync run not found")
	ErrInvalidSyncType   = errors.New("invalid sync type")
	ErrInvalidSyncConfig = errors.New("invalid sync config")
)

type SyncService interface {
	RunSync(ctx context.Context, conn *integration.Connection, syncType SyncType) (*SyncResult, error)
	RunForTenant(ctx context.Context, tenantID string, syncType SyncType) (*SyncResult, error)
	RunScheduledSync(ctx context.Context, connectionID string) error
	ListHistory(ctx context.Context, tenantID string, limit int64) ([]SyncRun, error)
	GetRun(ctx context.Context, tenantID, runID string) (*SyncRun, error)
	GetFieldMapping(ctx context.Context, tenantID string) (*FieldMappingView, error)
	UpdateFieldMapping(ctx context.Context, tenantID string, fieldMapping map[string]string) error
	GetSyncConfig(ctx context.Context, tenantID string) (*integration.SyncConfig, error)
	UpdateSyncConfig(ctx context.Context, tenantID string, cfg integration.SyncConfig) error
}

// Options tunes remote calls of a run.
type Options struct {
	Retry    retry.Options
	PageSize int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Retry: retry.Options{
			MaxRetries: cfg.SyncMaxRetries,
			Delay:      cfg.SyncRetryDelay,
		},
		PageSize: cfg.SyncPageSize,
	}
}

type SyncServiceImpl struct {
	connections integration.ConnectionRepository
	runs        SyncRunRepository
	customers   customer.CustomerRepository
	contacts    customer.ContactRepository
	tokens      integration.TokenProvider
	clients     ClientFactory
	resolver    mapping.RawValueResolver
	audit       audit.AuditService
	logger      *zap.Logger
	validate    *validator.Validate
	opts        Options
	locks       *runLocker
	now         func() time.Time
}

func NewSyncService(
	connections integration.ConnectionRepository,
	runs SyncRunRepository,
	customers customer.CustomerRepository,
	contacts customer.ContactRepository,
	tokens integration.TokenProvider,
	clients ClientFactory,
	auditService audit.AuditService,
	logger *zap.Logger,
	opts Options,
) SyncService {
	return &SyncServiceImpl{
		connections: connections,
		runs:        runs,
		customers:   customers,
		contacts:    contacts,
		tokens:      tokens,
		clients:     clients,
		resolver:    mapping.PipedriveResolver{},
		audit:       auditService,
		logger:      logger,
		validate:    validator.New(),
		opts:        opts,
		locks:       newRunLocker(),
		now:         time.Now,
	}
}

// runState is the bookkeeping of one run in progress.
type runState struct {
	run  *SyncRun
	sess *session
	log  *zap.Logger
}

func (st *runState) addError(entityType string, rec pipedrive.Record, err error, at time.Time) {
	st.run.Errors = append(st.run.Errors, EntityError{
		EntityType: entityType,
		EntityID:   fmt.Sprint(rec.ID()),
		EntityName: rec.Name(),
		Error:      err.Error(),
		Timestamp:  at,
	})
	st.log.Warn("Entity sync failed",
		zap.String("entity_type", entityType),
		zap.Int64("entity_id", rec.ID()),
		zap.Error(err))
}

// RunSync executes one sync of conn. Per-record failures are collected on the
// run; any other failure finalizes the run as failed and is returned.
func (s *SyncServiceImpl) RunSync(ctx context.Context, conn *integration.Connection, syncType SyncType) (*SyncResult, error) {
	if !syncType.Valid() {
		return nil, ErrInvalidSyncType
	}

	unlock, ok := s.locks.TryLock(conn.ID.Hex())
	if !ok {
		return nil, ErrSyncInProgress
	}
	defer unlock()

	// A run that just released the lock may have moved last_sync_at or
	// rotated the tokens.
	conn, err := s.connections.GetByID(ctx, conn.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("reload connection: %w", err)
	}
	if conn == nil {
		return nil, integration.ErrNotConnected
	}

	ctx = context.WithValue(ctx, common_models.TenantIDKey, conn.TenantID)
	ctx = context.WithValue(ctx, common_models.ConnectionIDKey, conn.ID.Hex())

	run := &SyncRun{
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
		SyncType:     syncType,
		Status:       RunStatusRunning,
		StartedAt:    s.now(),
		Errors:       []EntityError{},
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create sync run: %w", err)
	}

	st := &runState{
		run: run,
		log: s.logger.With(
			zap.String("tenant_id", conn.TenantID),
			zap.String("connection_id", conn.ID.Hex()),
			zap.String("run_id", run.ID.Hex()),
			zap.String("sync_type", string(syncType)),
		),
	}
	st.log.Info("Sync started")
	_ = s.audit.LogChange(ctx, common_models.AuditActionSync, "crmsync", run.ID.Hex(), map[string]common_models.Change{
		"status": {New: RunStatusRunning},
	})

	if err := s.execute(ctx, conn, st); err != nil {
		return nil, s.abort(ctx, conn, st, err)
	}
	return s.finish(ctx, conn, st)
}

func (s *SyncServiceImpl) execute(ctx context.Context, conn *integration.Connection, st *runState) error {
	sess, err := s.newSession(ctx, conn)
	if err != nil {
		return err
	}
	st.sess = sess
	cfg := sess.conn.SyncConfig

	orgSchema, err := s.loadSchema(ctx, sess, sess.client.OrganizationFields)
	if err != nil {
		return fmt.Errorf("load organization fields: %w", err)
	}
	var personSchema mapping.Schema
	if cfg.SyncPersons {
		if personSchema, err = s.loadSchema(ctx, sess, sess.client.PersonFields); err != nil {
			return fmt.Errorf("load person fields: %w", err)
		}
	}

	since := updatedSince(sess.conn, st.run.SyncType)

	orgPlan := entityPlan{
		plan:   mapping.NewPlan(activeMapping(cfg, cfg.CustomFieldMapping), activeComposites(cfg, cfg.AdvancedFieldMapping.Organization), customer.CustomerColumns),
		schema: orgSchema,
	}
	if err := s.syncOrganizations(ctx, st, orgPlan, since); err != nil {
		return err
	}

	if !cfg.SyncPersons {
		return nil
	}
	personPlan := entityPlan{
		plan:   mapping.NewPlan(activeMapping(cfg, cfg.PersonFieldMapping), activeComposites(cfg, cfg.AdvancedFieldMapping.Person), customer.ContactColumns),
		schema: personSchema,
	}
	return s.syncPersons(ctx, st, personPlan, since)
}

func (s *SyncServiceImpl) listParams(ep entityPlan, since string) pipedrive.ListParams {
	params := pipedrive.ListParams{
		Limit:        s.opts.PageSize,
		UpdatedSince: since,
		CustomFields: customFieldKeys(ep.plan, ep.schema),
	}
	if since != "" {
		params.SortBy = "update_time"
		params.SortDirection = "asc"
	}
	return params
}

func (s *SyncServiceImpl) syncOrganizations(ctx context.Context, st *runState, ep entityPlan, since string) error {
	tenantID := st.run.TenantID
	for rec, err := range s.records(ctx, st.sess, st.sess.client.ListOrganizations, s.listParams(ep, since)) {
		if err != nil {
			return fmt.Errorf("fetch organizations: %w", err)
		}
		st.run.OrganizationsFetched++

		outcome, err := s.upsertCustomer(ctx, tenantID, rec, ep, st.log)
		if err != nil {
			st.addError(EntityOrganization, rec, err, s.now())
			continue
		}
		switch outcome {
		case outcomeCreated:
			st.run.OrganizationsCreated++
		case outcomeUpdated:
			st.run.OrganizationsUpdated++
		}
	}
	return nil
}

func (s *SyncServiceImpl) syncPersons(ctx context.Context, st *runState, ep entityPlan, since string) error {
	tenantID := st.run.TenantID
	for rec, err := range s.records(ctx, st.sess, st.sess.client.ListPersons, s.listParams(ep, since)) {
		if err != nil {
			return fmt.Errorf("fetch persons: %w", err)
		}
		st.run.PersonsFetched++

		orgID, ok := rec.OrgID()
		if !ok {
			st.log.Debug("Skipping person without organization", zap.Int64("person_id", rec.ID()))
			continue
		}
		parent, err := s.customers.FindByExternalID(ctx, tenantID, orgID)
		if err != nil {
			st.addError(EntityPerson, rec, fmt.Errorf("find parent customer: %w", err), s.now())
			continue
		}
		if parent == nil {
			st.log.Debug("Skipping person whose organization is not synced",
				zap.Int64("person_id", rec.ID()),
				zap.Int64("org_id", orgID))
			continue
		}

		outcome, err := s.upsertContact(ctx, tenantID, rec, parent, ep, st.log)
		if err != nil {
			st.addError(EntityPerson, rec, err, s.now())
			continue
		}
		switch outcome {
		case outcomeCreated:
			st.run.PersonsCreated++
		case outcomeUpdated:
			st.run.PersonsUpdated++
		}
	}
	return nil
}

func (s *SyncServiceImpl) finish(ctx context.Context, conn *integration.Connection, st *runState) (*SyncResult, error) {
	ctx = context.WithoutCancel(ctx)
	run := st.run
	completed := s.now()
	run.CompletedAt = &completed

	run.Status = RunStatusSuccess
	lastErr := ""
	if n := len(run.Errors); n > 0 {
		run.Status = RunStatusPartial
		lastErr = fmt.Sprintf("%d entities failed, first: %s", n, run.Errors[0].Error)
	}

	if err := s.runs.Update(ctx, run); err != nil {
		st.log.Error("Failed to finalize sync run", zap.Error(err))
	}
	// Records changed while the run was paging are picked up next time.
	watermark := run.StartedAt
	if err := s.connections.UpdateSyncStatus(ctx, conn.ID, &watermark, string(run.Status), lastErr); err != nil {
		st.log.Error("Failed to update connection sync status", zap.Error(err))
	}

	st.log.Info("Sync finished",
		zap.String("status", string(run.Status)),
		zap.Int("organizations_fetched", run.OrganizationsFetched),
		zap.Int("organizations_created", run.OrganizationsCreated),
		zap.Int("organizations_updated", run.OrganizationsUpdated),
		zap.Int("persons_fetched", run.PersonsFetched),
		zap.Int("persons_created", run.PersonsCreated),
		zap.Int("persons_updated", run.PersonsUpdated),
		zap.Int("errors", len(run.Errors)),
		zap.Duration("duration", completed.Sub(run.StartedAt)))
	_ = s.audit.LogChange(ctx, common_models.AuditActionSync, "crmsync", run.ID.Hex(), map[string]common_models.Change{
		"status": {Old: RunStatusRunning, New: run.Status},
	})

	return &SyncResult{
		RunID:    run.ID.Hex(),
		Status:   run.Status,
		SyncType: run.SyncType,
		Stats:    run.SyncStats,
		Errors:   run.Errors,
	}, nil
}

// abort finalizes the run as failed with cause as its only error. Stats are
// dropped. The writes use a context that survives cancellation of ctx.
func (s *SyncServiceImpl) abort(ctx context.Context, conn *integration.Connection, st *runState, cause error) error {
	ctx = context.WithoutCancel(ctx)
	run := st.run
	completed := s.now()
	run.CompletedAt = &completed
	run.Status = RunStatusFailed
	run.SyncStats = SyncStats{}
	run.Errors = []EntityError{{
		EntityType: EntitySync,
		Error:      cause.Error(),
		Timestamp:  completed,
	}}

	if err := s.runs.Update(ctx, run); err != nil {
		st.log.Error("Failed to finalize sync run", zap.Error(err))
	}
	if err := s.connections.UpdateSyncStatus(ctx, conn.ID, nil, string(RunStatusFailed), cause.Error()); err != nil {
		st.log.Error("Failed to update connection sync status", zap.Error(err))
	}

	st.log.Error("Sync failed", zap.Error(cause))
	_ = s.audit.LogChange(ctx, common_models.AuditActionSync, "crmsync", run.ID.Hex(), map[string]common_models.Change{
		"status": {Old: RunStatusRunning, New: RunStatusFailed},
	})
	return fmt.Errorf("sync run %s failed: %w", run.ID.Hex(), cause)
}

// updatedSince returns the incremental window for a run, or "" for a full
// fetch. Manual runs follow the connection's incremental setting.
func updatedSince(conn *integration.Connection, syncType SyncType) string {
	switch syncType {
	case SyncTypeIncremental:
	case SyncTypeManual:
		if !conn.SyncConfig.IncrementalSync {
			return ""
		}
	default:
		return ""
	}
	if conn.LastSyncAt == nil {
		return ""
	}
	return conn.LastSyncAt.UTC().Format(UpdatedSinceLayout)
}

// activeMapping returns the custom field mapping when custom fields are synced.
func activeMapping(cfg integration.SyncConfig, m map[string]string) map[string]string {
	if !cfg.SyncCustomFields {
		return nil
	}
	return m
}

func activeComposites(cfg integration.SyncConfig, list []integration.CompositeFieldMapping) []mapping.Composite {
	if !cfg.SyncCustomFields {
		return nil
	}
	out := make([]mapping.Composite, 0, len(list))
	for _, c := range list {
		out = append(out, mapping.Composite{
			SourceFields: c.SourceFields,
			Separator:    c.Separator,
			Destination:  c.Destination,
		})
	}
	return out
}

func (s *SyncServiceImpl) tenantConnection(ctx context.Context, tenantID string) (*integration.Connection, error) {
	conn, err := s.connections.GetByTenant(ctx, tenantID, integration.ProviderPipedrive)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, integration.ErrNotConnected
	}
	return conn, nil
}

func (s *SyncServiceImpl) RunForTenant(ctx context.Context, tenantID string, syncType SyncType) (*SyncResult, error) {
	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive {
		return nil, integration.ErrNotConnected
	}
	return s.RunSync(ctx, conn, syncType)
}

// RunScheduledSync is the entry point of the auto-sync job.
func (s *SyncServiceImpl) RunScheduledSync(ctx context.Context, connectionID string) error {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn == nil {
		return integration.ErrNotConnected
	}
	if !conn.IsActive || !conn.SyncConfig.AutoSyncEnabled {
		s.logger.Info("Skipping scheduled sync, auto sync is off",
			zap.String("tenant_id", conn.TenantID),
			zap.String("connection_id", connectionID))
		return nil
	}

	syncType := SyncTypeFull
	if conn.SyncConfig.IncrementalSync {
		syncType = SyncTypeIncremental
	}
	_, err = s.RunSync(ctx, conn, syncType)
	return err
}

func (s *SyncServiceImpl) ListHistory(ctx context.Context, tenantID string, limit int64) ([]SyncRun, error) {
	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	runs, err := s.runs.ListByConnection(ctx, conn.ID, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []SyncRun{}
	}
	return runs, nil
}

func (s *SyncServiceImpl) GetRun(ctx context.Context, tenantID, runID string) (*SyncRun, error) {
	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.ConnectionID != conn.ID {
		return nil, ErrRunNotFound
	}
	return run, nil
}
