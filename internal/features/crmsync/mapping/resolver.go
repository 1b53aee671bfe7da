package mapping

import "strings"

// RawValueResolver extracts the raw value of a remote field from a record.
type RawValueResolver interface {
	ResolveRawValue(record map[string]any, key string) (any, bool)
}

// addressParts are the components of a structured address value.
var addressParts = []string{
	"formatted_address",
	"street_number",
	"route",
	"subpremise",
	"sublocality",
	"locality",
	"admin_area_level_1",
	"admin_area_level_2",
	"postal_code",
	"country",
	"value",
}

// PipedriveResolver looks a key up in the custom_fields bag first, then on
// the record itself, then as a part of a structured address value.
type PipedriveResolver struct{}

// ResolveRawValue implements RawValueResolver.
func (PipedriveResolver) ResolveRawValue(record map[string]any, key string) (any, bool) {
	if record == nil || key == "" {
		return nil, false
	}

	if v, ok := lookup(record, key); ok {
		if addr, isMap := v.(map[string]any); isMap && isAddress(addr) {
			return addressValue(addr), true
		}
		return v, true
	}

	for _, part := range addressParts {
		base, ok := strings.CutSuffix(key, "_"+part)
		if !ok || base == "" {
			continue
		}
		v, found := lookup(record, base)
		if !found {
			continue
		}
		addr, isMap := v.(map[string]any)
		if !isMap {
			continue
		}
		if part == "value" {
			return addressValue(addr), true
		}
		pv, ok := addr[part]
		return pv, ok
	}

	return nil, false
}

func lookup(record map[string]any, key string) (any, bool) {
	if cf, ok := record["custom_fields"].(map[string]any); ok {
		if v, found := cf[key]; found {
			return v, true
		}
	}
	v, ok := record[key]
	return v, ok
}

func isAddress(m map[string]any) bool {
	if _, ok := m["formatted_address"]; ok {
		return true
	}
	for _, part := range []string{"locality", "postal_code", "route", "country"} {
		if _, ok := m[part]; ok {
			return true
		}
	}
	return false
}

func addressValue(addr map[string]any) any {
	if v, ok := addr["value"]; ok && v != nil {
		return v
	}
	return addr["formatted_address"]
}
