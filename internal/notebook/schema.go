package notebook

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

// SchemaRefPrefix marks a json_schema string that points into the pad's registry.
const SchemaRefPrefix = "scratchpad://schemas/"

// SchemaEntry is one named JSON Schema in a pad's registry.
type SchemaEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// Registry maps schema names to entries. The name is the lookup key; the id
// is stable across renames.
type Registry map[string]SchemaEntry

// NewSchemaID returns a fresh registry entry id (32 lowercase hex digits).
func NewSchemaID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CanonicalSchemaID parses any UUID spelling into the registry's hex form.
func CanonicalSchemaID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", scerrors.NewValidation("schema id must be a UUID string")
	}
	return strings.ReplaceAll(parsed.String(), "-", ""), nil
}

// SchemaRefName extracts <name> from a scratchpad://schemas/<name> reference.
func SchemaRefName(ref string) (string, bool) {
	if name, ok := strings.CutPrefix(ref, SchemaRefPrefix); ok {
		return name, true
	}
	return "", false
}

// NormalizeRegistry coerces a loosely typed registry into canonical entries.
// Values may be full entries ({id, description, schema}), bare schema objects,
// or JSON strings; undecodable values are skipped with a warning.
func NormalizeRegistry(raw any) Registry {
	registry := make(Registry)
	switch v := raw.(type) {
	case Registry:
		for name, entry := range v {
			registry.put(name, entry)
		}
	case map[string]SchemaEntry:
		for name, entry := range v {
			registry.put(name, entry)
		}
	case map[string]any:
		for name, value := range v {
			entry, ok := coerceEntry(value)
			if !ok {
				slog.Warn("skipping shared schema entry", "component", "notebook", "name", name)
				continue
			}
			registry.put(name, entry)
		}
	}
	return registry
}

func (r Registry) put(name string, entry SchemaEntry) {
	if entry.Schema == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = NewSchemaID()
	}
	entry.Name = name
	r[name] = entry
}

func coerceEntry(value any) (SchemaEntry, bool) {
	switch v := value.(type) {
	case SchemaEntry:
		return v, v.Schema != nil
	case string:
		schema, ok := decodeSchemaString(v)
		return SchemaEntry{Schema: schema}, ok
	case map[string]any:
		candidate, hasSchema := v["schema"]
		if !hasSchema {
			return SchemaEntry{Schema: cloneMap(v)}, true
		}
		var entry SchemaEntry
		switch s := candidate.(type) {
		case map[string]any:
			entry.Schema = cloneMap(s)
		case string:
			schema, ok := decodeSchemaString(s)
			if !ok {
				return SchemaEntry{}, false
			}
			entry.Schema = schema
		default:
			return SchemaEntry{}, false
		}
		if id, ok := v["id"].(string); ok {
			entry.ID = id
		}
		if desc, ok := v["description"].(string); ok {
			entry.Description = desc
		}
		return entry, true
	default:
		return SchemaEntry{}, false
	}
}

func decodeSchemaString(s string) (map[string]any, bool) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil || decoded == nil {
		return nil, false
	}
	return decoded, true
}

// toMetadata renders the registry in the map form stored under metadata.schemas.
func (r Registry) toMetadata() map[string]any {
	out := make(map[string]any, len(r))
	for name, entry := range r {
		out[name] = map[string]any{
			"id":          entry.ID,
			"name":        name,
			"description": entry.Description,
			"schema":      cloneMap(entry.Schema),
		}
	}
	return out
}

// Sorted returns entries ordered by description (case-insensitive) then name.
func (r Registry) Sorted() []SchemaEntry {
	entries := make([]SchemaEntry, 0, len(r))
	for _, entry := range r {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		di, dj := strings.ToLower(entries[i].Description), strings.ToLower(entries[j].Description)
		if di != dj {
			return di < dj
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// ByID finds an entry by id, case-insensitively.
func (r Registry) ByID(id string) (SchemaEntry, bool) {
	id = strings.ToLower(id)
	for _, entry := range r {
		if strings.ToLower(entry.ID) == id {
			return entry, true
		}
	}
	return SchemaEntry{}, false
}

// Upsert inserts or updates entry and returns the stored value.
// Matching by id renames in place and keeps the id. A name match without an
// id keeps the existing id; a new name without an id gets a fresh one.
func (r Registry) Upsert(entry SchemaEntry) (SchemaEntry, error) {
	target := strings.TrimSpace(entry.Name)
	if target == "" {
		target = strings.TrimSpace(entry.ID)
	}
	if target == "" {
		return SchemaEntry{}, scerrors.NewConfig("schema entry missing name")
	}
	if entry.Schema == nil {
		return SchemaEntry{}, scerrors.NewValidation("schema entry must include a JSON object under 'schema'")
	}

	if entry.ID != "" {
		if existing, ok := r.ByID(entry.ID); ok && existing.Name != target {
			delete(r, existing.Name)
		}
	} else if existing, ok := r[target]; ok {
		entry.ID = existing.ID
	}

	r.put(target, entry)
	return r[target], nil
}

// Schemas returns the pad's normalized registry.
func (p *Scratchpad) Schemas() Registry {
	return NormalizeRegistry(p.Metadata["schemas"])
}

// SetSchemas stores registry under metadata.schemas, removing the key when empty.
func (p *Scratchpad) SetSchemas(registry Registry) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	if len(registry) == 0 {
		delete(p.Metadata, "schemas")
		return
	}
	p.Metadata["schemas"] = registry.toMetadata()
}
