package integration

import (
	"context"
	"time"

	"go-crm-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TokenUpdate is the result of a token refresh.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	APIDomain    string
}

type ConnectionRepository interface {
	GetByTenant(ctx context.Context, tenantID, provider string) (*Connection, error)
	GetByID(ctx context.Context, id string) (*Connection, error)
	Upsert(ctx context.Context, conn *Connection) error
	UpdateTokens(ctx context.Context, id primitive.ObjectID, update TokenUpdate) error
	UpdateSyncStatus(ctx context.Context, id primitive.ObjectID, lastSyncAt *time.Time, status, syncErr string) error
	UpdateFieldMapping(ctx context.Context, id primitive.ObjectID, mapping map[string]string) error
	UpdateSyncConfig(ctx context.Context, id primitive.ObjectID, cfg SyncConfig) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListAutoSync(ctx context.Context) ([]Connection, error)
	EnsureIndexes(ctx context.Context) error
}

type ConnectionRepositoryImpl struct {
	collection *mongo.Collection
}

func NewConnectionRepository(db *database.MongodbDB) ConnectionRepository {
	return &ConnectionRepositoryImpl{
		collection: db.DB.Collection("crm_connections"),
	}
}

func (r *ConnectionRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*Connection, error) {
	var conn Connection
	err := r.collection.FindOne(ctx, filter).Decode(&conn)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepositoryImpl) GetByTenant(ctx context.Context, tenantID, provider string) (*Connection, error) {
	return r.findOne(ctx, bson.M{"tenant_id": tenantID, "provider": provider})
}

func (r *ConnectionRepositoryImpl) GetByID(ctx context.Context, id string) (*Connection, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// Upsert creates the tenant's connection or replaces its tokens and company
// details. Mapping, sync config and sync status of an existing connection are
// kept. conn is refreshed from the stored document.
func (r *ConnectionRepositoryImpl) Upsert(ctx context.Context, conn *Connection) error {
	now := time.Now()
	filter := bson.M{"tenant_id": conn.TenantID, "provider": conn.Provider}
	update := bson.M{
		"$set": bson.M{
			"access_token":     conn.AccessToken,
			"refresh_token":    conn.RefreshToken,
			"token_expires_at": conn.TokenExpiresAt,
			"api_domain":       conn.APIDomain,
			"company_id":       conn.CompanyID,
			"company_name":     conn.CompanyName,
			"is_active":        true,
			"updated_at":       now,
		},
		"$setOnInsert": bson.M{
			"field_mapping": map[string]string{},
			"sync_config":   DefaultSyncConfig(),
			"created_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(conn)
}

func (r *ConnectionRepositoryImpl) UpdateTokens(ctx context.Context, id primitive.ObjectID, u TokenUpdate) error {
	set := bson.M{
		"access_token":     u.AccessToken,
		"refresh_token":    u.RefreshToken,
		"token_expires_at": u.ExpiresAt,
		"updated_at":       time.Now(),
	}
	if u.APIDomain != "" {
		set["api_domain"] = u.APIDomain
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *ConnectionRepositoryImpl) UpdateSyncStatus(ctx context.Context, id primitive.ObjectID, lastSyncAt *time.Time, status, syncErr string) error {
	set := bson.M{
		"last_sync_status": status,
		"last_sync_error":  syncErr,
		"updated_at":       time.Now(),
	}
	if lastSyncAt != nil {
		set["last_sync_at"] = *lastSyncAt
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *ConnectionRepositoryImpl) UpdateFieldMapping(ctx context.Context, id primitive.ObjectID, mapping map[string]string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"field_mapping": mapping,
		"updated_at":    time.Now(),
	}})
	return err
}

func (r *ConnectionRepositoryImpl) UpdateSyncConfig(ctx context.Context, id primitive.ObjectID, cfg SyncConfig) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"sync_config": cfg,
		"updated_at":  time.Now(),
	}})
	return err
}

func (r *ConnectionRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *ConnectionRepositoryImpl) ListAutoSync(ctx context.Context) ([]Connection, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"is_active":                     true,
		"sync_config.auto_sync_enabled": true,
	})
	if err != nil {
		return nil, err
	}
	var conns []Connection
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *ConnectionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "provider", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
