package mapping

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultSeparator joins the parts of a composite mapping.
const DefaultSeparator = " "

// Composite builds one destination from several remote fields.
type Composite struct {
	SourceFields []string
	Separator    string
	Destination  string
}

type entry struct {
	remoteKey string
	dest      Destination
}

type compositeEntry struct {
	sources   []string
	separator string
	dest      Destination
}

// Plan is a parsed mapping for one entity kind. It is built once per run and
// applied to every record.
type Plan struct {
	entries    []entry
	composites []compositeEntry
}

// Result holds the mapped values of one record.
type Result struct {
	Columns map[string]any
	Blob    map[string]any
}

// NewPlan parses a remote key to destination mapping and the composite
// rules against the entity's allowed columns.
func NewPlan(fields map[string]string, composites []Composite, columns []string) *Plan {
	p := &Plan{}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		d := ParseDestination(fields[k], columns)
		if d.Kind == DestinationNone || strings.TrimSpace(k) == "" {
			continue
		}
		p.entries = append(p.entries, entry{remoteKey: k, dest: d})
	}

	for _, c := range composites {
		d := ParseDestination(c.Destination, columns)
		if d.Kind == DestinationNone || len(c.SourceFields) == 0 {
			continue
		}
		sep := c.Separator
		if sep == "" {
			sep = DefaultSeparator
		}
		p.composites = append(p.composites, compositeEntry{
			sources:   append([]string(nil), c.SourceFields...),
			separator: sep,
			dest:      d,
		})
	}
	return p
}

// RemoteKeys returns every remote key the plan reads, without duplicates.
func (p *Plan) RemoteKeys() []string {
	seen := map[string]bool{}
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, e := range p.entries {
		add(e.remoteKey)
	}
	for _, c := range p.composites {
		for _, s := range c.sources {
			add(s)
		}
	}
	return out
}

// Apply maps one record. Fields absent from the record, or null, are not
// written.
func (p *Plan) Apply(record map[string]any, schema Schema, resolver RawValueResolver) (*Result, error) {
	res := &Result{Columns: map[string]any{}, Blob: map[string]any{}}

	for _, e := range p.entries {
		raw, ok := resolver.ResolveRawValue(record, e.remoteKey)
		if !ok || raw == nil {
			continue
		}
		v, err := Transform(raw, schema.Field(e.remoteKey))
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", e.remoteKey, err)
		}
		res.write(e.dest, v)
	}

	for _, c := range p.composites {
		joined, err := joinComposite(record, schema, resolver, c)
		if err != nil {
			return nil, err
		}
		if joined == "" {
			continue
		}
		res.write(c.dest, joined)
	}

	return res, nil
}

func (r *Result) write(d Destination, v any) {
	switch d.Kind {
	case DestinationColumn:
		r.Columns[d.Column] = v
	case DestinationJSONPath:
		SetPath(r.Blob, d.Path, v)
	case DestinationUnmapped:
		r.Blob[d.Key] = v
	}
}

func joinComposite(record map[string]any, schema Schema, resolver RawValueResolver, c compositeEntry) (string, error) {
	parts := make([]string, 0, len(c.sources))
	for _, key := range c.sources {
		raw, ok := resolver.ResolveRawValue(record, key)
		if !ok || raw == nil {
			continue
		}
		v, err := Transform(raw, schema.Field(key))
		if err != nil {
			return "", fmt.Errorf("map composite %s: %w", key, err)
		}
		if s := strings.TrimSpace(StringValue(v)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, c.separator), nil
}
