package customer

import (
	"context"
	"time"

	"go-crm-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CustomerRepository interface {
	FindByExternalID(ctx context.Context, tenantID string, externalID int64) (*Customer, error)
	Create(ctx context.Context, customer *Customer) error
	Update(ctx context.Context, customer *Customer) error
	EnsureIndexes(ctx context.Context) error
}

type ContactRepository interface {
	FindByExternalID(ctx context.Context, tenantID string, externalID int64) (*Contact, error)
	Create(ctx context.Context, contact *Contact) error
	Update(ctx context.Context, contact *Contact) error
	EnsureIndexes(ctx context.Context) error
}

type CustomerRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCustomerRepository(db *database.MongodbDB) CustomerRepository {
	return &CustomerRepositoryImpl{
		collection: db.DB.Collection("customers"),
	}
}

func (r *CustomerRepositoryImpl) FindByExternalID(ctx context.Context, tenantID string, externalID int64) (*Customer, error) {
	var c Customer
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "external_id": externalID}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepositoryImpl) Create(ctx context.Context, c *Customer) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	res, err := r.collection.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *CustomerRepositoryImpl) Update(ctx context.Context, c *Customer) error {
	c.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": c})
	return err
}

func (r *CustomerRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type ContactRepositoryImpl struct {
	collection *mongo.Collection
}

func NewContactRepository(db *database.MongodbDB) ContactRepository {
	return &ContactRepositoryImpl{
		collection: db.DB.Collection("contacts"),
	}
}

func (r *ContactRepositoryImpl) FindByExternalID(ctx context.Context, tenantID string, externalID int64) (*Contact, error) {
	var c Contact
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "external_id": externalID}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepositoryImpl) Create(ctx context.Context, c *Contact) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	res, err := r.collection.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ContactRepositoryImpl) Update(ctx context.Context, c *Contact) error {
	c.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": c})
	return err
}

func (r *ContactRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
