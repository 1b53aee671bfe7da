package crmsync

import (
	"context"

	"go-crm-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SyncRunRepository interface {
	Create(ctx context.Context, run *SyncRun) error
	Update(ctx context.Context, run *SyncRun) error
	GetByID(ctx context.Context, id string) (*SyncRun, error)
	ListByConnection(ctx context.Context, connectionID primitive.ObjectID, limit int64) ([]SyncRun, error)
	DeleteByConnection(ctx context.Context, connectionID primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type SyncRunRepositoryImpl struct {
	collection *mongo.Collection
}

func NewSyncRunRepository(db *database.MongodbDB) SyncRunRepository {
	return &SyncRunRepositoryImpl{
		collection: db.DB.Collection("crm_sync_runs"),
	}
}

func (r *SyncRunRepositoryImpl) Create(ctx context.Context, run *SyncRun) error {
	res, err := r.collection.InsertOne(ctx, run)
	if err != nil {
		return err
	}
	run.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *SyncRunRepositoryImpl) Update(ctx context.Context, run *SyncRun) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	return err
}

func (r *SyncRunRepositoryImpl) GetByID(ctx context.Context, id string) (*SyncRun, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var run SyncRun
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&run); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *SyncRunRepositoryImpl) ListByConnection(ctx context.Context, connectionID primitive.ObjectID, limit int64) ([]SyncRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"connection_id": connectionID}, opts)
	if err != nil {
		return nil, err
	}
	var runs []SyncRun
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *SyncRunRepositoryImpl) DeleteByConnection(ctx context.Context, connectionID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"connection_id": connectionID})
	return err
}

func (r *SyncRunRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "connection_id", Value: 1}, {Key: "started_at", Value: -1}},
	})
	return err
}
