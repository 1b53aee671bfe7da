package mapping

import (
	"encoding/json"
	"strings"
)

// DecodeBlob parses a stored JSON object. An empty string is an empty object.
// On a parse failure an empty object is returned together with the error so
// the caller can decide to log and carry on.
func DecodeBlob(s string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return map[string]any{}, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// EncodeBlob serializes a blob. Keys are emitted in sorted order.
func EncodeBlob(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SetPath writes v at path inside doc, creating intermediate objects.
// Sibling keys are never removed; a non-object found on the way is replaced.
func SetPath(doc map[string]any, path []string, v any) {
	if len(path) == 0 {
		return
	}
	cur := doc
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}

// MergeMapped returns existing with mapped merged in. Nested objects are
// merged recursively, every other value in mapped replaces the existing one.
// Keys that only exist in existing are kept. Neither input is modified.
func MergeMapped(existing, mapped map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(mapped))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range mapped {
		newObj, newIsObj := v.(map[string]any)
		oldObj, oldIsObj := out[k].(map[string]any)
		if newIsObj && oldIsObj {
			out[k] = MergeMapped(oldObj, newObj)
			continue
		}
		out[k] = v
	}
	return out
}
