package crmsync

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
	SyncTypeManual      SyncType = "manual"
)

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	switch t {
	case SyncTypeFull, SyncTypeIncremental, SyncTypeManual:
		return true
	}
	return false
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// Entity types recorded in EntityError.
const (
	EntityOrganization = "organization"
	EntityPerson       = "person"
	EntitySync         = "sync"
)

// EntityError is one record that failed to sync. The run carries on.
type EntityError struct {
	EntityType string    `json:"entity_type" bson:"entity_type"`
	EntityID   string    `json:"entity_id" bson:"entity_id"`
	EntityName string    `json:"entity_name,omitempty" bson:"entity_name,omitempty"`
	Error      string    `json:"error" bson:"error"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

type SyncStats struct {
	OrganizationsFetched int `json:"organizations_fetched" bson:"organizations_fetched"`
	OrganizationsCreated int `json:"organizations_created" bson:"organizations_created"`
	OrganizationsUpdated int `json:"organizations_updated" bson:"organizations_updated"`
	PersonsFetched       int `json:"persons_fetched" bson:"persons_fetched"`
	PersonsCreated       int `json:"persons_created" bson:"persons_created"`
	PersonsUpdated       int `json:"persons_updated" bson:"persons_updated"`
}

// SyncRun is the log entry of one sync attempt. It is inserted as running
// and updated exactly once with its terminal status.
type SyncRun struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConnectionID primitive.ObjectID `json:"connection_id" bson:"connection_id"`
	TenantID     string             `json:"tenant_id" bson:"tenant_id"`
	SyncType     SyncType           `json:"sync_type" bson:"sync_type"`
	Status       RunStatus          `json:"status" bson:"status"`
	StartedAt    time.Time          `json:"started_at" bson:"started_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	SyncStats    `bson:",inline"`
	Errors       []EntityError `json:"errors" bson:"errors"`
}

// SyncResult is returned to the caller of a run.
type SyncResult struct {
	RunID    string        `json:"run_id"`
	Status   RunStatus     `json:"status"`
	SyncType SyncType      `json:"sync_type"`
	Stats    SyncStats     `json:"stats"`
	Errors   []EntityError `json:"errors"`
}

// FieldMappingView is the field mapping screen: the stored mapping and the
// remote fields it can refer to.
type FieldMappingView struct {
	FieldMapping       map[string]string `json:"field_mapping"`
	OrganizationFields []RemoteField     `json:"organization_fields"`
	PersonFields       []RemoteField     `json:"person_fields"`
}

type RemoteField struct {
	Key       string            `json:"key"`
	Name      string            `json:"name"`
	FieldType string            `json:"field_type"`
	Options   map[string]string `json:"options,omitempty"`
}
