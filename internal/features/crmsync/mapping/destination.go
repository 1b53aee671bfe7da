package mapping

import "strings"

// DestinationKind tags where a mapped value is written.
type DestinationKind int

const (
	// DestinationNone means the mapping entry is empty and is ignored.
	DestinationNone DestinationKind = iota
	// DestinationColumn is a first-class column of the local entity.
	DestinationColumn
	// DestinationJSONPath is a dot path inside the entity blob.
	DestinationJSONPath
	// DestinationUnmapped is a catch-all top-level blob key.
	DestinationUnmapped
)

// Blob roots accepted as destination prefixes.
const (
	RootProfile  = "profile"
	RootMetadata = "metadata"
)

// Destination is a parsed local target of one mapping entry.
type Destination struct {
	Kind   DestinationKind
	Column string
	Root   string
	Path   []string
	Key    string
}

// ParseDestination resolves dest against the allowed column names. Exact
// column names win; "profile." and "metadata." prefixes select a path in the
// blob; anything else lands in the blob under dest itself.
func ParseDestination(dest string, columns []string) Destination {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return Destination{Kind: DestinationNone}
	}

	for _, col := range columns {
		if dest == col {
			return Destination{Kind: DestinationColumn, Column: col}
		}
	}

	for _, root := range []string{RootProfile, RootMetadata} {
		rest, ok := strings.CutPrefix(dest, root+".")
		if !ok {
			continue
		}
		path := splitPath(rest)
		if len(path) == 0 {
			break
		}
		return Destination{Kind: DestinationJSONPath, Root: root, Path: path}
	}

	return Destination{Kind: DestinationUnmapped, Key: dest}
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
