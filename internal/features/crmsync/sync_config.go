package crmsync

import (
	"context"
	"fmt"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/internal/features/integration"
)

// GetFieldMapping returns the stored mapping with the remote field
// definitions it can refer to, loaded live from the provider.
func (s *SyncServiceImpl) GetFieldMapping(ctx context.Context, tenantID string) (*FieldMappingView, error) {
	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sess, err := s.newSession(ctx, conn)
	if err != nil {
		return nil, err
	}

	orgFields, err := s.fields(ctx, sess, sess.client.OrganizationFields)
	if err != nil {
		return nil, fmt.Errorf("load organization fields: %w", err)
	}
	personFields, err := s.fields(ctx, sess, sess.client.PersonFields)
	if err != nil {
		return nil, fmt.Errorf("load person fields: %w", err)
	}

	view := &FieldMappingView{
		FieldMapping:       conn.FieldMapping,
		OrganizationFields: make([]RemoteField, 0, len(orgFields)),
		PersonFields:       make([]RemoteField, 0, len(personFields)),
	}
	if view.FieldMapping == nil {
		view.FieldMapping = map[string]string{}
	}
	for _, f := range orgFields {
		view.OrganizationFields = append(view.OrganizationFields, toRemoteField(f))
	}
	for _, f := range personFields {
		view.PersonFields = append(view.PersonFields, toRemoteField(f))
	}
	return view, nil
}

func (s *SyncServiceImpl) UpdateFieldMapping(ctx context.Context, tenantID string, fieldMapping map[string]string) error {
	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return err
	}
	if fieldMapping == nil {
		fieldMapping = map[string]string{}
	}
	if err := s.connections.UpdateFieldMapping(ctx, conn.ID, fieldMapping); err != nil {
		return err
	}
	_ = s.audit.LogChange(ctx, common_models.AuditActionUpdate, "crmsync", conn.ID.Hex(), map[string]common_models.Change{
		"field_mapping": {Old: conn.FieldMapping, New: fieldMapping},
	})
	return nil
}

func (s *SyncServiceImpl) GetSyncConfig(ctx context.Context, tenantID string) (*integration.SyncConfig, error) {
	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cfg := conn.SyncConfig
	return &cfg, nil
}

func (s *SyncServiceImpl) UpdateSyncConfig(ctx context.Context, tenantID string, cfg integration.SyncConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSyncConfig, err)
	}

	conn, err := s.tenantConnection(ctx, tenantID)
	if err != nil {
		return err
	}
	if cfg.CustomFieldMapping == nil {
		cfg.CustomFieldMapping = map[string]string{}
	}
	if cfg.PersonFieldMapping == nil {
		cfg.PersonFieldMapping = map[string]string{}
	}
	if err := s.connections.UpdateSyncConfig(ctx, conn.ID, cfg); err != nil {
		return err
	}
	_ = s.audit.LogChange(ctx, common_models.AuditActionSettings, "crmsync", conn.ID.Hex(), map[string]common_models.Change{
		"sync_config": {Old: conn.SyncConfig, New: cfg},
	})
	return nil
}
