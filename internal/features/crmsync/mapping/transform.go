// Package mapping turns raw remote CRM records into values that fit the local
// Customer and Contact models: option id to label transforms, destination
// routing into columns or the JSON blob, and merge of mapped blob content.
package mapping

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Remote field types that need translation. Every other type is passed through.
const (
	FieldTypeEnum = "enum"
	FieldTypeSet  = "set"
)

// ErrUnsupportedValue is returned when a raw value cannot be interpreted for
// its field type.
var ErrUnsupportedValue = errors.New("unsupported field value")

// FieldSchema describes one remote field. Options maps option id (as a
// decimal string) to its label.
type FieldSchema struct {
	Key       string
	Name      string
	FieldType string
	Custom    bool
	Options   map[string]string
}

// Schema indexes field definitions by key.
type Schema map[string]*FieldSchema

// Field returns the definition for key, or nil.
func (s Schema) Field(key string) *FieldSchema {
	if s == nil {
		return nil
	}
	return s[key]
}

// Transform converts a raw remote value into its local representation.
func Transform(raw any, field *FieldSchema) (any, error) {
	if raw == nil || field == nil {
		return raw, nil
	}

	switch field.FieldType {
	case FieldTypeEnum:
		id, ok := optionKey(raw)
		if !ok {
			if _, isMap := raw.(map[string]any); isMap {
				return nil, fmt.Errorf("%w: enum %s got %T", ErrUnsupportedValue, field.Key, raw)
			}
			return raw, nil
		}
		if label, found := field.Options[id]; found {
			return label, nil
		}
		return raw, nil

	case FieldTypeSet:
		ids, err := setIDs(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: set %s: %v", ErrUnsupportedValue, field.Key, err)
		}
		labels := make([]string, 0, len(ids))
		for _, id := range ids {
			if label, found := field.Options[id]; found {
				labels = append(labels, label)
				continue
			}
			labels = append(labels, id)
		}
		return labels, nil

	default:
		return raw, nil
	}
}

// setIDs normalizes an array of ids, a single id or a comma separated string.
func setIDs(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, ok := optionKey(item)
			if !ok {
				return nil, fmt.Errorf("element of type %T", item)
			}
			ids = append(ids, id)
		}
		return ids, nil
	case []string:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				ids = append(ids, s)
			}
		}
		return ids, nil
	case string:
		var ids []string
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				ids = append(ids, s)
			}
		}
		return ids, nil
	default:
		id, ok := optionKey(raw)
		if !ok {
			return nil, fmt.Errorf("value of type %T", raw)
		}
		return []string{id}, nil
	}
}

// optionKey renders a numeric or string id in the form used by Schema options.
func optionKey(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n), true
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10), true
		}
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case fmt.Stringer:
		return n.String(), true
	default:
		return "", false
	}
}

// StringValue flattens a mapped value for a string column.
func StringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := StringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if inner, ok := x["value"]; ok {
			return StringValue(inner)
		}
		if inner, ok := x["formatted_address"]; ok {
			return StringValue(inner)
		}
		return ""
	case bool:
		return strconv.FormatBool(x)
	default:
		if s, ok := optionKey(v); ok {
			return s
		}
		return fmt.Sprint(v)
	}
}
