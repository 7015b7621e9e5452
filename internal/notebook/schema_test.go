package notebook

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

var objectSchema = map[string]any{"type": "object", "required": []any{"value"}}

func TestNormalizeRegistry_Forms(t *testing.T) {
	registry := NormalizeRegistry(map[string]any{
		"full":   map[string]any{"id": "abc", "description": "Full", "schema": objectSchema},
		"bare":   map[string]any{"type": "string"},
		"text":   `{"type": "number"}`,
		"broken": "not json",
		"nested": map[string]any{"schema": `{"type":"array"}`},
	})

	require.Len(t, registry, 4)
	assert.Equal(t, "abc", registry["full"].ID)
	assert.Equal(t, "Full", registry["full"].Description)
	assert.Equal(t, map[string]any{"type": "string"}, registry["bare"].Schema)
	assert.Equal(t, "number", registry["text"].Schema["type"])
	assert.Equal(t, "array", registry["nested"].Schema["type"])
	assert.NotContains(t, registry, "broken")
	for name, entry := range registry {
		assert.Equal(t, name, entry.Name)
		assert.NotEmpty(t, entry.ID)
	}
}

func TestRegistryUpsert(t *testing.T) {
	registry := make(Registry)

	first, err := registry.Upsert(SchemaEntry{Name: "payload", Schema: objectSchema})
	require.NoError(t, err)
	require.Len(t, first.ID, 32)

	// Same name without id keeps the id.
	again, err := registry.Upsert(SchemaEntry{Name: "payload", Description: "v2", Schema: objectSchema})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Rename by id keeps the id and drops the old name.
	renamed, err := registry.Upsert(SchemaEntry{ID: first.ID, Name: "body", Schema: objectSchema})
	require.NoError(t, err)
	assert.Equal(t, first.ID, renamed.ID)
	assert.NotContains(t, registry, "payload")
	assert.Contains(t, registry, "body")

	// A new name without id gets a fresh id.
	other, err := registry.Upsert(SchemaEntry{Name: "other", Schema: objectSchema})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = registry.Upsert(SchemaEntry{Schema: objectSchema})
	assert.True(t, scerrors.Is(err, scerrors.ErrConfig))

	_, err = registry.Upsert(SchemaEntry{Name: "nothing"})
	assert.True(t, scerrors.Is(err, scerrors.ErrValidation))
}

func TestRegistrySorted(t *testing.T) {
	registry := Registry{}
	registry.put("b", SchemaEntry{Description: "Alpha", Schema: objectSchema})
	registry.put("a", SchemaEntry{Description: "alpha", Schema: objectSchema})
	registry.put("c", SchemaEntry{Description: "", Schema: objectSchema})

	var names []string
	for _, e := range registry.Sorted() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestCanonicalSchemaID(t *testing.T) {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")

	got, err := CanonicalSchemaID(strings.ToUpper(id.String()))
	require.NoError(t, err)
	assert.Equal(t, hex, got)

	got, err = CanonicalSchemaID(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, got)

	_, err = CanonicalSchemaID("nope")
	assert.True(t, scerrors.Is(err, scerrors.ErrValidation))
}

func TestPadSchemas(t *testing.T) {
	pad := &Scratchpad{ID: "p"}
	registry := pad.Schemas()
	_, err := registry.Upsert(SchemaEntry{Name: "payload", Schema: objectSchema})
	require.NoError(t, err)
	pad.SetSchemas(registry)

	stored := pad.Schemas()
	require.Contains(t, stored, "payload")
	assert.Equal(t, registry["payload"].ID, stored["payload"].ID)

	pad.SetSchemas(nil)
	assert.NotContains(t, pad.Metadata, "schemas")
}

func TestSchemaRefName(t *testing.T) {
	name, ok := SchemaRefName("scratchpad://schemas/payload")
	assert.True(t, ok)
	assert.Equal(t, "payload", name)

	_, ok = SchemaRefName(`{"type":"object"}`)
	assert.False(t, ok)
}
