package settings

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Provider string

const (
	ProviderPipedrive Provider = "pipedrive"
)

// OAuthAppSettings is a tenant's own OAuth application for a provider.
type OAuthAppSettings struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID     string             `json:"tenant_id" bson:"tenant_id"` // Unique with provider
	Provider     Provider           `json:"provider" bson:"provider"`
	IsEnabled    bool               `json:"is_enabled" bson:"is_enabled"`
	ClientID     string             `json:"client_id" bson:"client_id"`
	ClientSecret string             `json:"-" bson:"client_secret"`
	RedirectURL  string             `json:"redirect_url" bson:"redirect_url"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasCredentials reports whether the app can be used for OAuth.
func (s *OAuthAppSettings) HasCredentials() bool {
	return s != nil && s.ClientID != "" && s.ClientSecret != ""
}

// OAuthAppConfig is the request and response body of the config endpoints.
// ClientSecret is write only; an empty value keeps the stored secret.
type OAuthAppConfig struct {
	IsEnabled       bool   `json:"is_enabled"`
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret,omitempty"`
	RedirectURL     string `json:"redirect_url"`
	HasClientSecret bool   `json:"has_client_secret"`
}
