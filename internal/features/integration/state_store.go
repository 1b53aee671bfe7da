package integration

import (
	"context"

	"go-crm-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StateStore keeps pending OAuth states. Consume removes the state, a state
// can only be used once.
type StateStore interface {
	Save(ctx context.Context, state *OAuthState) error
	Consume(ctx context.Context, state string) (*OAuthState, error)
	EnsureIndexes(ctx context.Context) error
}

type MongoStateStore struct {
	collection *mongo.Collection
}

func NewStateStore(db *database.MongodbDB) StateStore {
	return &MongoStateStore{
		collection: db.DB.Collection("crm_oauth_states"),
	}
}

func (s *MongoStateStore) Save(ctx context.Context, state *OAuthState) error {
	_, err := s.collection.InsertOne(ctx, state)
	return err
}

func (s *MongoStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	var st OAuthState
	err := s.collection.FindOneAndDelete(ctx, bson.M{"_id": state}).Decode(&st)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// EnsureIndexes lets mongo expire states that were never consumed.
func (s *MongoStateStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}
