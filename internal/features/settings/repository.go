package settings

import (
	"context"

	"go-crm-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SettingsRepository interface {
	GetByTenant(ctx context.Context, tenantID string, provider Provider) (*OAuthAppSettings, error)
	Upsert(ctx context.Context, settings *OAuthAppSettings) error
	EnsureIndexes(ctx context.Context) error
}

type SettingsRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewSettingsRepository(mongodb *database.MongodbDB) SettingsRepository {
	return &SettingsRepositoryImpl{
		Collection: mongodb.DB.Collection("integration_settings"),
	}
}

func (r *SettingsRepositoryImpl) GetByTenant(ctx context.Context, tenantID string, provider Provider) (*OAuthAppSettings, error) {
	var settings OAuthAppSettings
	err := r.Collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "provider": provider}).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepositoryImpl) Upsert(ctx context.Context, settings *OAuthAppSettings) error {
	filter := bson.M{"tenant_id": settings.TenantID, "provider": settings.Provider}
	update := bson.M{"$set": bson.M{
		"is_enabled":    settings.IsEnabled,
		"client_id":     settings.ClientID,
		"client_secret": settings.ClientSecret,
		"redirect_url":  settings.RedirectURL,
		"updated_at":    settings.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)
	_, err := r.Collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *SettingsRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "provider", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
