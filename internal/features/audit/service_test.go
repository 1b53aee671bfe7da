package audit

import (
	"context"
	"testing"
	"time"

	common_models "go-crm-sync/internal/common/models"
	"go-crm-sync/pkg/utils"
)

type MockAuditRepo struct {
	Created    []common_models.AuditLog
	LastLimit  int64
	LastOffset int64
}

func (m *MockAuditRepo) Create(ctx context.Context, log common_models.AuditLog) error {
	m.Created = append(m.Created, log)
	return nil
}

func (m *MockAuditRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *MockAuditRepo) List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]common_models.AuditLog, error) {
	m.LastLimit = limit
	m.LastOffset = offset
	return m.Created, nil
}

func TestLogChange_UsesActorAndTenantFromContext(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := &AuditServiceImpl{Repo: repo, now: func() time.Time { return time.Unix(100, 0) }}

	ctx := context.WithValue(context.Background(), utils.UserClaimsKey, &utils.UserClaims{UserID: "u-1"})
	ctx = context.WithValue(ctx, common_models.TenantIDKey, "t-1")

	err := svc.LogChange(ctx, common_models.AuditActionConnect, "integration", "conn-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.Created) != 1 {
		t.Fatalf("expected 1 log, got %d", len(repo.Created))
	}
	got := repo.Created[0]
	if got.ActorID != "u-1" || got.TenantID != "t-1" || got.RecordID != "conn-1" {
		t.Errorf("unexpected log %+v", got)
	}
	if !got.Timestamp.Equal(time.Unix(100, 0)) {
		t.Errorf("unexpected timestamp %v", got.Timestamp)
	}
}

func TestLogChange_DefaultsToSystemActor(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo)

	if err := svc.LogChange(context.Background(), common_models.AuditActionCron, "cron", "x", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Created[0].ActorID != "system" {
		t.Errorf("expected system actor, got %q", repo.Created[0].ActorID)
	}
}

func TestListLogs_Pagination(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo)

	if _, err := svc.ListLogs(context.Background(), nil, 3, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.LastLimit != 10 || repo.LastOffset != 20 {
		t.Errorf("expected limit 10 offset 20, got %d/%d", repo.LastLimit, repo.LastOffset)
	}
}
