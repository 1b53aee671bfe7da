package pipedrive

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a raw organization or person as returned by the API. Custom
// field values live under "custom_fields" in v2 responses.
type Record map[string]any

// ID returns the numeric record id, or 0.
func (r Record) ID() int64 {
	id, _ := ToInt64(r["id"])
	return id
}

// Name returns the display name of the record.
func (r Record) Name() string {
	if s, ok := r["name"].(string); ok {
		return s
	}
	return ""
}

// OrgID returns the parent organization id of a person. Both the v2 shape
// (plain number) and the v1 shape ({"value": n}) are accepted.
func (r Record) OrgID() (int64, bool) {
	switch v := r["org_id"].(type) {
	case nil:
		return 0, false
	case map[string]any:
		return ToInt64(v["value"])
	default:
		return ToInt64(v)
	}
}

// CustomFields returns the nested custom field bag, if any.
func (r Record) CustomFields() map[string]any {
	if m, ok := r["custom_fields"].(map[string]any); ok {
		return m
	}
	return nil
}

// FieldOption is one choice of an enum or set field.
type FieldOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Field describes one organization or person field.
type Field struct {
	ID        int64         `json:"id"`
	Key       string        `json:"key"`
	Name      string        `json:"name"`
	FieldType string        `json:"field_type"`
	EditFlag  bool          `json:"edit_flag"` // True for custom fields
	Options   []FieldOption `json:"options"`
}

// User is the authorized user returned by /users/me.
type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	CompanyID     int64  `json:"company_id"`
	CompanyName   string `json:"company_name"`
	CompanyDomain string `json:"company_domain"`
}

// ListParams filters a list call.
type ListParams struct {
	Cursor        string
	Limit         int
	UpdatedSince  string
	SortBy        string
	SortDirection string
	CustomFields  []string
}

// RecordPage is one page of organizations or persons.
type RecordPage struct {
	Items      []Record
	NextCursor string
}

// FieldPage is one page of field definitions. NextStart is empty on the last page.
type FieldPage struct {
	Items     []Field
	NextStart string
}

type listResponse struct {
	Success        bool     `json:"success"`
	Data           []Record `json:"data"`
	AdditionalData struct {
		NextCursor *string `json:"next_cursor"`
	} `json:"additional_data"`
}

type itemResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type fieldsResponse struct {
	Success        bool    `json:"success"`
	Data           []Field `json:"data"`
	AdditionalData struct {
		Pagination struct {
			MoreItemsInCollection bool `json:"more_items_in_collection"`
			NextStart             int  `json:"next_start"`
		} `json:"pagination"`
	} `json:"additional_data"`
}

// ToInt64 converts JSON-decoded numbers and numeric strings to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case fmt.Stringer:
		i, err := strconv.ParseInt(strings.TrimSpace(n.String()), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
