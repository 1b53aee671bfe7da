package crmsync

import (
	"context"
	"errors"
	"fmt"

	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/features/crmsync/mapping"
	"go-crm-sync/internal/features/customer"

	"go.uber.org/zap"
)

var errMissingID = errors.New("record has no id")

type upsertOutcome int

const (
	outcomeUnchanged upsertOutcome = iota
	outcomeCreated
	outcomeUpdated
)

// entityPlan is the mapping of one entity kind for a run.
type entityPlan struct {
	plan   *mapping.Plan
	schema mapping.Schema
}

func applyColumns(set func(name, value string), columns map[string]any) {
	for name, v := range columns {
		set(name, mapping.StringValue(v))
	}
}

// applyCustomerBase copies the built-in organization fields.
func applyCustomerBase(c *customer.Customer, rec pipedrive.Record) {
	if name := rec.Name(); name != "" {
		c.Name = name
	}
	addr, ok := rec["address"].(map[string]any)
	if !ok {
		if s, isString := rec["address"].(string); isString && s != "" {
			c.Address = s
		}
		return
	}
	if v := mapping.StringValue(addr); v != "" {
		c.Address = v
	}
	if v := mapping.StringValue(addr["locality"]); v != "" {
		c.City = v
	}
	if v := mapping.StringValue(addr["postal_code"]); v != "" {
		c.PostalCode = v
	}
	if v := mapping.StringValue(addr["country"]); v != "" {
		c.Country = v
	}
}

// applyContactBase copies the built-in person fields.
func applyContactBase(c *customer.Contact, rec pipedrive.Record) {
	if name := rec.Name(); name != "" {
		c.Name = name
	}
	if v := mapping.StringValue(rec["first_name"]); v != "" {
		c.FirstName = v
	}
	if v := mapping.StringValue(rec["last_name"]); v != "" {
		c.LastName = v
	}
	if v := mapping.StringValue(rec["job_title"]); v != "" {
		c.JobTitle = v
	}
	if v := primaryValue(rec, "emails", "email"); v != "" {
		c.Email = v
	}
	if v := primaryValue(rec, "phones", "phone"); v != "" {
		c.Phone = v
	}
}

// primaryValue reads a list of {value, primary} entries, v2 name first.
func primaryValue(rec pipedrive.Record, keys ...string) string {
	for _, key := range keys {
		switch list := rec[key].(type) {
		case string:
			if list != "" {
				return list
			}
		case []any:
			first := ""
			for _, item := range list {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				v := mapping.StringValue(entry["value"])
				if v == "" {
					continue
				}
				if primary, _ := entry["primary"].(bool); primary {
					return v
				}
				if first == "" {
					first = v
				}
			}
			if first != "" {
				return first
			}
		}
	}
	return ""
}

// mergeBlob merges mapped blob content into the stored JSON text. changed is
// false when the stored blob already holds the merged content.
func (s *SyncServiceImpl) mergeBlob(stored string, mapped map[string]any, log *zap.Logger) (merged string, changed bool, err error) {
	existing, decodeErr := mapping.DecodeBlob(stored)
	if decodeErr != nil {
		log.Warn("Stored blob is not valid JSON, starting from an empty object", zap.Error(decodeErr))
	}
	before, err := mapping.EncodeBlob(existing)
	if err != nil {
		return "", false, err
	}
	merged, err = mapping.EncodeBlob(mapping.MergeMapped(existing, mapped))
	if err != nil {
		return "", false, err
	}
	return merged, decodeErr != nil || merged != before, nil
}

func (s *SyncServiceImpl) upsertCustomer(ctx context.Context, tenantID string, rec pipedrive.Record, ep entityPlan, log *zap.Logger) (upsertOutcome, error) {
	externalID := rec.ID()
	if externalID == 0 {
		return outcomeUnchanged, errMissingID
	}

	res, err := ep.plan.Apply(rec, ep.schema, s.resolver)
	if err != nil {
		return outcomeUnchanged, err
	}

	existing, err := s.customers.FindByExternalID(ctx, tenantID, externalID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("find customer: %w", err)
	}

	if existing == nil {
		c := &customer.Customer{TenantID: tenantID, ExternalID: externalID}
		applyCustomerBase(c, rec)
		applyColumns(c.SetColumn, res.Columns)
		if c.Profile, err = mapping.EncodeBlob(res.Blob); err != nil {
			return outcomeUnchanged, err
		}
		c.SyncedAt = s.now()
		if err := s.customers.Create(ctx, c); err != nil {
			return outcomeUnchanged, fmt.Errorf("create customer: %w", err)
		}
		return outcomeCreated, nil
	}

	before := *existing
	applyCustomerBase(existing, rec)
	applyColumns(existing.SetColumn, res.Columns)

	profile, blobChanged, err := s.mergeBlob(existing.Profile, res.Blob, log)
	if err != nil {
		return outcomeUnchanged, err
	}
	if !blobChanged && *existing == before {
		return outcomeUnchanged, nil
	}

	existing.Profile = profile
	existing.SyncedAt = s.now()
	if err := s.customers.Update(ctx, existing); err != nil {
		return outcomeUnchanged, fmt.Errorf("update customer: %w", err)
	}
	return outcomeUpdated, nil
}

func (s *SyncServiceImpl) upsertContact(ctx context.Context, tenantID string, rec pipedrive.Record, parent *customer.Customer, ep entityPlan, log *zap.Logger) (upsertOutcome, error) {
	externalID := rec.ID()
	if externalID == 0 {
		return outcomeUnchanged, errMissingID
	}

	res, err := ep.plan.Apply(rec, ep.schema, s.resolver)
	if err != nil {
		return outcomeUnchanged, err
	}

	existing, err := s.contacts.FindByExternalID(ctx, tenantID, externalID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("find contact: %w", err)
	}

	if existing == nil {
		c := &customer.Contact{TenantID: tenantID, ExternalID: externalID, CustomerID: parent.ID}
		applyContactBase(c, rec)
		applyColumns(c.SetColumn, res.Columns)
		if c.Metadata, err = mapping.EncodeBlob(res.Blob); err != nil {
			return outcomeUnchanged, err
		}
		c.SyncedAt = s.now()
		if err := s.contacts.Create(ctx, c); err != nil {
			return outcomeUnchanged, fmt.Errorf("create contact: %w", err)
		}
		return outcomeCreated, nil
	}

	before := *existing
	existing.CustomerID = parent.ID
	applyContactBase(existing, rec)
	applyColumns(existing.SetColumn, res.Columns)

	metadata, blobChanged, err := s.mergeBlob(existing.Metadata, res.Blob, log)
	if err != nil {
		return outcomeUnchanged, err
	}
	if !blobChanged && *existing == before {
		return outcomeUnchanged, nil
	}

	existing.Metadata = metadata
	existing.SyncedAt = s.now()
	if err := s.contacts.Update(ctx, existing); err != nil {
		return outcomeUnchanged, fmt.Errorf("update contact: %w", err)
	}
	return outcomeUpdated, nil
}
