package integration

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const ProviderPipedrive = "pipedrive"

// CompositeFieldMapping joins several remote fields into one destination.
type CompositeFieldMapping struct {
	SourceFields []string `json:"source_fields" bson:"source_fields" validate:"min=1,dive,required"`
	Separator    string   `json:"separator,omitempty" bson:"separator,omitempty"` // Defaults to a single space
	Destination  string   `json:"destination" bson:"destination" validate:"required"`
}

type AdvancedFieldMapping struct {
	Organization []CompositeFieldMapping `json:"organization" bson:"organization" validate:"dive"`
	Person       []CompositeFieldMapping `json:"person" bson:"person" validate:"dive"`
}

// SyncConfig controls what a sync run fetches and where mapped values land.
// Mapping keys are remote field keys, values are local destinations.
type SyncConfig struct {
	SyncCustomFields     bool                 `json:"sync_custom_fields" bson:"sync_custom_fields"`
	CustomFieldMapping   map[string]string    `json:"custom_field_mapping" bson:"custom_field_mapping"`
	PersonFieldMapping   map[string]string    `json:"person_field_mapping" bson:"person_field_mapping"`
	SyncPersons          bool                 `json:"sync_persons" bson:"sync_persons"`
	IncrementalSync      bool                 `json:"incremental_sync" bson:"incremental_sync"`
	AutoSyncEnabled      bool                 `json:"auto_sync_enabled" bson:"auto_sync_enabled"`
	AutoSyncTime         string               `json:"auto_sync_time" bson:"auto_sync_time" validate:"required_if=AutoSyncEnabled true,omitempty,datetime=15:04"`
	AdvancedFieldMapping AdvancedFieldMapping `json:"advanced_field_mapping" bson:"advanced_field_mapping"`
}

// DefaultSyncConfig is stored on a connection the first time it is created.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		SyncCustomFields:   true,
		CustomFieldMapping: map[string]string{},
		PersonFieldMapping: map[string]string{},
		SyncPersons:        true,
		AutoSyncTime:       "02:00",
	}
}

type Connection struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID       string             `json:"tenant_id" bson:"tenant_id"` // Unique with provider
	Provider       string             `json:"provider" bson:"provider"`
	AccessToken    string             `json:"-" bson:"access_token"`
	RefreshToken   string             `json:"-" bson:"refresh_token"`
	TokenExpiresAt time.Time          `json:"token_expires_at" bson:"token_expires_at"`
	APIDomain      string             `json:"api_domain" bson:"api_domain"`
	CompanyID      int64              `json:"company_id" bson:"company_id"`
	CompanyName    string             `json:"company_name" bson:"company_name"`
	IsActive       bool               `json:"is_active" bson:"is_active"`
	FieldMapping   map[string]string  `json:"field_mapping" bson:"field_mapping"` // Display mapping edited in the UI
	SyncConfig     SyncConfig         `json:"sync_config" bson:"sync_config"`
	LastSyncAt     *time.Time         `json:"last_sync_at,omitempty" bson:"last_sync_at,omitempty"`
	LastSyncStatus string             `json:"last_sync_status,omitempty" bson:"last_sync_status,omitempty"`
	LastSyncError  string             `json:"last_sync_error,omitempty" bson:"last_sync_error,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// OAuthState binds an authorize redirect to the tenant that started it.
type OAuthState struct {
	State     string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index
}

type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	Provider        string     `json:"provider"`
	CompanyID       int64      `json:"company_id,omitempty"`
	CompanyName     string     `json:"company_name,omitempty"`
	APIDomain       string     `json:"api_domain,omitempty"`
	IsActive        bool       `json:"is_active"`
	AutoSyncEnabled bool       `json:"auto_sync_enabled"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus  string     `json:"last_sync_status,omitempty"`
	LastSyncError   string     `json:"last_sync_error,omitempty"`
}
