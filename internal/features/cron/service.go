package cron_feature

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/features/audit"
	"go-crm-sync/internal/features/integration"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReconcileSchedule re-reads auto-sync settings so changes made by other
// instances are picked up.
const ReconcileSchedule = "@every 5m"

// jobTimeout bounds one scheduled run.
const jobTimeout = time.Hour

// SyncRunner runs the scheduled sync of one connection.
type SyncRunner interface {
	RunScheduledSync(ctx context.Context, connectionID string) error
}

type ConnectionLister interface {
	ListAutoSync(ctx context.Context) ([]integration.Connection, error)
}

type SchedulerService interface {
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
	Reload(ctx context.Context) error
	ListScheduled() []ScheduledSync
}

type SchedulerServiceImpl struct {
	connections  ConnectionLister
	runner       SyncRunner
	auditService audit.AuditService
	logger       *zap.Logger

	scheduler  *cron.Cron
	jobEntries map[string]cron.EntryID
	jobSpecs   map[string]string
	jobTenants map[string]string
	mu         sync.RWMutex
}

func NewSchedulerService(
	connections integration.ConnectionRepository,
	runner SyncRunner,
	auditService audit.AuditService,
	logger *zap.Logger,
) SchedulerService {
	return newScheduler(connections, runner, auditService, logger)
}

func newScheduler(connections ConnectionLister, runner SyncRunner, auditService audit.AuditService, logger *zap.Logger) *SchedulerServiceImpl {
	return &SchedulerServiceImpl{
		connections:  connections,
		runner:       runner,
		auditService: auditService,
		logger:       logger,
		scheduler:    cron.New(),
		jobEntries:   make(map[string]cron.EntryID),
		jobSpecs:     make(map[string]string),
		jobTenants:   make(map[string]string),
	}
}

// ScheduleSpec converts an "HH:MM" time of day into a daily cron spec.
func ScheduleSpec(autoSyncTime string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(autoSyncTime), ":")
	if !ok {
		return "", fmt.Errorf("invalid auto sync time %q", autoSyncTime)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid auto sync hour %q", autoSyncTime)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || len(mm) != 2 {
		return "", fmt.Errorf("invalid auto sync minute %q", autoSyncTime)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (s *SchedulerServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.logger.Info("Initializing auto-sync scheduler")

	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load auto-sync connections: %w", err)
	}

	if _, err := s.scheduler.AddFunc(ReconcileSchedule, func() {
		if err := s.Reload(context.Background()); err != nil {
			s.logger.Error("Auto-sync reconcile failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to add reconcile job: %w", err)
	}

	s.scheduler.Start()
	return nil
}

func (s *SchedulerServiceImpl) StopScheduler() error {
	ctx := s.scheduler.Stop()
	<-ctx.Done()
	return nil
}

// Reload makes the registered jobs match the connections that have auto sync
// enabled.
func (s *SchedulerServiceImpl) Reload(ctx context.Context) error {
	conns, err := s.connections.ListAutoSync(ctx)
	if err != nil {
		return err
	}

	desired := make(map[string]string, len(conns))
	tenants := make(map[string]string, len(conns))
	for _, conn := range conns {
		spec, err := ScheduleSpec(conn.SyncConfig.AutoSyncTime)
		if err != nil {
			s.logger.Warn("Skipping auto sync with invalid time",
				zap.String("tenant_id", conn.TenantID),
				zap.String("connection_id", conn.ID.Hex()),
				zap.Error(err))
			continue
		}
		desired[conn.ID.Hex()] = spec
		tenants[conn.ID.Hex()] = conn.TenantID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, spec := range s.jobSpecs {
		if desired[id] != spec {
			s.unregisterLocked(id)
		}
	}
	for id, spec := range desired {
		if _, exists := s.jobEntries[id]; exists {
			continue
		}
		if err := s.registerLocked(id, tenants[id], spec); err != nil {
			s.logger.Error("Failed to register auto sync", zap.String("connection_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *SchedulerServiceImpl) registerLocked(connectionID, tenantID, spec string) error {
	entryID, err := s.scheduler.AddFunc(spec, func() {
		s.runJob(connectionID, tenantID)
	})
	if err != nil {
		return fmt.Errorf("failed to add auto sync job: %w", err)
	}
	s.jobEntries[connectionID] = entryID
	s.jobSpecs[connectionID] = spec
	s.jobTenants[connectionID] = tenantID
	s.logger.Info("Auto sync scheduled",
		zap.String("tenant_id", tenantID),
		zap.String("connection_id", connectionID),
		zap.String("schedule", spec))
	return nil
}

func (s *SchedulerServiceImpl) unregisterLocked(connectionID string) {
	if entryID, exists := s.jobEntries[connectionID]; exists {
		s.scheduler.Remove(entryID)
	}
	delete(s.jobEntries, connectionID)
	delete(s.jobSpecs, connectionID)
	delete(s.jobTenants, connectionID)
}

func (s *SchedulerServiceImpl) runJob(connectionID, tenantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, common_models.TenantIDKey, tenantID)

	log := s.logger.With(zap.String("tenant_id", tenantID), zap.String("connection_id", connectionID))
	log.Info("Running scheduled sync")

	err := s.runner.RunScheduledSync(ctx, connectionID)
	switch {
	case err == nil:
	case errors.Is(err, integration.ErrNotConnected):
		log.Info("Connection is gone, removing auto sync")
		s.mu.Lock()
		s.unregisterLocked(connectionID)
		s.mu.Unlock()
	default:
		log.Error("Scheduled sync failed", zap.Error(err))
	}

	_ = s.auditService.LogChange(ctx, common_models.AuditActionCron, "cron", connectionID, nil)
}

func (s *SchedulerServiceImpl) ListScheduled() []ScheduledSync {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduledSync, 0, len(s.jobEntries))
	for id, entryID := range s.jobEntries {
		out = append(out, ScheduledSync{
			ConnectionID: id,
			TenantID:     s.jobTenants[id],
			Schedule:     s.jobSpecs[id],
			NextRun:      s.scheduler.Entry(entryID).Next,
		})
	}
	return out
}
