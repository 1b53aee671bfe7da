package customer

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Column names a field mapping may target directly. Any other destination is
// written into the entity's JSON blob.
var (
	CustomerColumns = []string{"name", "address", "city", "postal_code", "country", "phone", "email", "website"}
	ContactColumns  = []string{"name", "first_name", "last_name", "email", "phone", "job_title"}
)

type Customer struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID   string             `json:"tenant_id" bson:"tenant_id"`
	ExternalID int64              `json:"external_id" bson:"external_id"` // Remote organization id
	Name       string             `json:"name" bson:"name"`
	Address    string             `json:"address,omitempty" bson:"address,omitempty"`
	City       string             `json:"city,omitempty" bson:"city,omitempty"`
	PostalCode string             `json:"postal_code,omitempty" bson:"postal_code,omitempty"`
	Country    string             `json:"country,omitempty" bson:"country,omitempty"`
	Phone      string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Email      string             `json:"email,omitempty" bson:"email,omitempty"`
	Website    string             `json:"website,omitempty" bson:"website,omitempty"`
	Profile    string             `json:"profile" bson:"profile"` // JSON blob
	SyncedAt   time.Time          `json:"synced_at" bson:"synced_at"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// SetColumn writes a mapped value into the named column. Unknown names are
// ignored.
func (c *Customer) SetColumn(name, value string) {
	switch name {
	case "name":
		c.Name = value
	case "address":
		c.Address = value
	case "city":
		c.City = value
	case "postal_code":
		c.PostalCode = value
	case "country":
		c.Country = value
	case "phone":
		c.Phone = value
	case "email":
		c.Email = value
	case "website":
		c.Website = value
	}
}

type Contact struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID   string             `json:"tenant_id" bson:"tenant_id"`
	ExternalID int64              `json:"external_id" bson:"external_id"` // Remote person id
	CustomerID primitive.ObjectID `json:"customer_id" bson:"customer_id"`
	Name       string             `json:"name" bson:"name"`
	FirstName  string             `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName   string             `json:"last_name,omitempty" bson:"last_name,omitempty"`
	Email      string             `json:"email,omitempty" bson:"email,omitempty"`
	Phone      string             `json:"phone,omitempty" bson:"phone,omitempty"`
	JobTitle   string             `json:"job_title,omitempty" bson:"job_title,omitempty"`
	Metadata   string             `json:"metadata" bson:"metadata"` // JSON blob
	SyncedAt   time.Time          `json:"synced_at" bson:"synced_at"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// SetColumn writes a mapped value into the named column. Unknown names are
// ignored.
func (c *Contact) SetColumn(name, value string) {
	switch name {
	case "name":
		c.Name = value
	case "first_name":
		c.FirstName = value
	case "last_name":
		c.LastName = value
	case "email":
		c.Email = value
	case "phone":
		c.Phone = value
	case "job_title":
		c.JobTitle = value
	}
}
