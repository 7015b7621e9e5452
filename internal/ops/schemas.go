package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// ListSchemasInput contains parameters for the ListSchemas operation.
type ListSchemasInput struct {
	ScratchID string
}

// ListSchemasOutput contains the result of the ListSchemas operation.
type ListSchemasOutput struct {
	ScratchID string                 `json:"scratch_id"`
	Schemas   []notebook.SchemaEntry `json:"schemas"`
}

// ListSchemas returns a pad's shared schemas.
func ListSchemas(ctx context.Context, env *Env, input ListSchemasInput) (out *ListSchemasOutput, err error) {
	done, err := env.begin("list_schemas")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := env.Store.ValidateIdentifier(input.ScratchID); err != nil {
		return nil, err
	}
	entries, err := env.Store.ListSchemas(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []notebook.SchemaEntry{}
	}
	return &ListSchemasOutput{ScratchID: input.ScratchID, Schemas: entries}, nil
}

// GetSchemaInput contains parameters for the GetSchema operation.
type GetSchemaInput struct {
	ScratchID string

	// SchemaID accepts any UUID spelling
	SchemaID string
}

// SchemaOutput wraps one registry entry.
type SchemaOutput struct {
	Schema notebook.SchemaEntry `json:"schema"`
}

// GetSchema fetches one shared schema by id.
func GetSchema(ctx context.Context, env *Env, input GetSchemaInput) (out *SchemaOutput, err error) {
	done, err := env.begin("get_schema")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := env.Store.ValidateIdentifier(input.ScratchID); err != nil {
		return nil, err
	}
	schemaID, err := notebook.CanonicalSchemaID(input.SchemaID)
	if err != nil {
		return nil, err
	}
	entry, err := env.Store.GetSchema(ctx, input.ScratchID, schemaID)
	if err != nil {
		return nil, err
	}
	return &SchemaOutput{Schema: entry}, nil
}

// SchemaRequest is a caller's schema definition. Description and Schema stay
// loosely typed so their shapes can be reported precisely.
type SchemaRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description any    `json:"description,omitempty"`
	Schema      any    `json:"schema"`
}

// UpsertSchemaInput contains parameters for the UpsertSchema operation.
type UpsertSchemaInput struct {
	ScratchID string
	Schema    SchemaRequest
}

// UpsertSchema creates or updates a shared schema after checking that its
// definition is itself a valid JSON Schema.
func UpsertSchema(ctx context.Context, env *Env, input UpsertSchemaInput) (out *SchemaOutput, err error) {
	done, err := env.begin("upsert_schema")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := env.Store.ValidateIdentifier(input.ScratchID); err != nil {
		return nil, err
	}
	entry, err := coerceSchemaRequest(input.Schema)
	if err != nil {
		return nil, err
	}
	stored, err := env.Store.UpsertSchema(ctx, input.ScratchID, entry)
	if err != nil {
		return nil, err
	}
	return &SchemaOutput{Schema: stored}, nil
}

func coerceSchemaRequest(req SchemaRequest) (notebook.SchemaEntry, error) {
	body, ok := req.Schema.(map[string]any)
	if !ok {
		return notebook.SchemaEntry{}, errors.NewValidation("schema request must include a JSON object under 'schema'")
	}
	if err := validate.CheckSchema(body); err != nil {
		return notebook.SchemaEntry{}, err
	}

	entry := notebook.SchemaEntry{Name: strings.TrimSpace(req.Name), Schema: body}
	switch d := req.Description.(type) {
	case nil:
	case string:
		entry.Description = d
	default:
		return notebook.SchemaEntry{}, errors.NewValidation("schema description must be a string")
	}
	if id := strings.TrimSpace(req.ID); id != "" {
		canonical, err := notebook.CanonicalSchemaID(id)
		if err != nil {
			return notebook.SchemaEntry{}, err
		}
		entry.ID = canonical
	}
	return entry, nil
}
