package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = map[string]any{"type": "string", "minLength": 1}

var cellSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"cell_id":     map[string]any{"type": "string", "description": "Stable cell id; generated when omitted."},
		"language":    map[string]any{"type": "string", "description": "Cell language, e.g. md, json, yaml, py, go."},
		"content":     map[string]any{"type": "string"},
		"validate":    map[string]any{"type": "boolean", "description": "Reject the write if validation fails."},
		"json_schema": map[string]any{"description": "Inline schema object, JSON string, or scratchpad://schemas/<name>."},
		"metadata":    map[string]any{"type": "object", "description": "Free-form metadata; tags filter reads and listings."},
	},
	"required": []string{"language", "content"},
}

var scratchIDParam = mcp.WithString("scratch_id", mcp.Required(), mcp.Description("Scratchpad identifier"))

var createToolDef = mcp.NewTool("scratch_create",
	mcp.WithDescription("Create a scratch notebook. Omit scratch_id to have one generated. "+
		"Metadata may carry title, description, summary, namespace and tags; other keys are stored verbatim. "+
		"Call scratch_namespace_list first and reuse an existing namespace where one fits."),
	mcp.WithString("scratch_id", mcp.Description("Optional identifier ([A-Za-z0-9_-], up to 128 characters)")),
	mcp.WithObject("metadata", mcp.Description("Pad metadata including canonical fields")),
	mcp.WithArray("cells", mcp.Description("Initial cells"), mcp.Items(cellSchema)),
)

var readToolDef = mcp.NewTool("scratch_read",
	mcp.WithDescription("Read a scratch notebook. Filters apply in order: indices, cell_ids, tags. "+
		"namespaces asserts the pad belongs to one of them. Set include_metadata=false to drop the metadata block."),
	mcp.WithReadOnlyHintAnnotation(true),
	scratchIDParam,
	mcp.WithArray("indices", mcp.Description("Zero-based cell indices"), mcp.Items(map[string]any{"type": "integer", "minimum": 0})),
	mcp.WithArray("cell_ids", mcp.Description("Cell ids"), mcp.Items(stringItems)),
	mcp.WithArray("tags", mcp.Description("Keep cells whose tags intersect these"), mcp.Items(stringItems)),
	mcp.WithArray("namespaces", mcp.Description("Allowed namespaces"), mcp.Items(stringItems)),
	mcp.WithBoolean("include_metadata", mcp.Description("Include pad metadata (default true)")),
)

var listCellsToolDef = mcp.NewTool("scratch_list_cells",
	mcp.WithDescription("List cells for a scratch notebook without their content."),
	mcp.WithReadOnlyHintAnnotation(true),
	scratchIDParam,
)

var deleteToolDef = mcp.NewTool("scratch_delete",
	mcp.WithDescription("Delete a scratch notebook by id."),
	mcp.WithDestructiveHintAnnotation(true),
	scratchIDParam,
)

var appendToolDef = mcp.NewTool("scratch_append_cell",
	mcp.WithDescription("Append a cell to a scratch notebook."),
	scratchIDParam,
	mcp.WithObject("cell", mcp.Required(), mcp.Description("Cell to append"), mcp.Properties(cellSchema["properties"].(map[string]any))),
)

var replaceToolDef = mcp.NewTool("scratch_replace_cell",
	mcp.WithDescription("Replace a cell, addressed by cell_id or index (not both). "+
		"Metadata is kept when omitted. new_index moves the cell."),
	scratchIDParam,
	mcp.WithString("cell_id", mcp.Description("Target cell id")),
	mcp.WithNumber("index", mcp.Description("Target cell index"), mcp.Min(0)),
	mcp.WithNumber("new_index", mcp.Description("Destination index"), mcp.Min(0)),
	mcp.WithObject("cell", mcp.Required(), mcp.Description("Replacement cell"), mcp.Properties(cellSchema["properties"].(map[string]any))),
)

var validateToolDef = mcp.NewTool("scratch_validate",
	mcp.WithDescription("Validate one or more cells. Results are diagnostics and never change the pad."),
	mcp.WithReadOnlyHintAnnotation(true),
	scratchIDParam,
	mcp.WithArray("indices", mcp.Description("Cells to validate; all when omitted"), mcp.Items(map[string]any{"type": "integer", "minimum": 0})),
)

var listToolDef = mcp.NewTool("scratch_list",
	mcp.WithDescription("List scratchpads with lean metadata: scratch_id, title, description, namespace, cell_count."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithArray("namespaces", mcp.Description("Only these namespaces"), mcp.Items(stringItems)),
	mcp.WithArray("tags", mcp.Description("Pads whose tags or cell tags include any of these"), mcp.Items(stringItems)),
	mcp.WithNumber("limit", mcp.Description("Result cap; all matches when omitted"), mcp.Min(0)),
)

var listTagsToolDef = mcp.NewTool("scratch_list_tags",
	mcp.WithDescription("List scratchpad-level and cell-level tags, optionally filtered by namespace."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithArray("namespaces", mcp.Description("Only these namespaces"), mcp.Items(stringItems)),
)

var searchToolDef = mcp.NewTool("scratch_search",
	mcp.WithDescription("Semantic search across scratchpads and cells."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	mcp.WithArray("namespaces", mcp.Description("Only these namespaces"), mcp.Items(stringItems)),
	mcp.WithArray("tags", mcp.Description("Only documents carrying any of these tags"), mcp.Items(stringItems)),
	mcp.WithNumber("limit", mcp.Description("Maximum hits (default 10, max 50)"), mcp.Min(1), mcp.Max(50)),
)

var listSchemasToolDef = mcp.NewTool("scratch_list_schemas",
	mcp.WithDescription("List shared schemas attached to a scratch notebook."),
	mcp.WithReadOnlyHintAnnotation(true),
	scratchIDParam,
)

var getSchemaToolDef = mcp.NewTool("scratch_get_schema",
	mcp.WithDescription("Fetch a shared schema definition by id."),
	mcp.WithReadOnlyHintAnnotation(true),
	scratchIDParam,
	mcp.WithString("schema_id", mcp.Required(), mcp.Description("Schema UUID")),
)

var upsertSchemaToolDef = mcp.NewTool("scratch_upsert_schema",
	mcp.WithDescription("Create or update a shared schema. Cells reference it as scratchpad://schemas/<name>."),
	scratchIDParam,
	mcp.WithObject("schema", mcp.Required(), mcp.Description("Schema entry"), mcp.Properties(map[string]any{
		"id":          map[string]any{"type": "string", "description": "Existing schema UUID to update or rename"},
		"name":        map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"schema":      map[string]any{"type": "object", "description": "JSON Schema definition"},
	})),
)

var namespaceListToolDef = mcp.NewTool("scratch_namespace_list",
	mcp.WithDescription("List namespaces available to the current tenant with scratchpad counts."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var namespaceCreateToolDef = mcp.NewTool("scratch_namespace_create",
	mcp.WithDescription("Register a namespace. Registering an existing namespace is a no-op."),
	mcp.WithString("namespace", mcp.Required()),
)

var namespaceRenameToolDef = mcp.NewTool("scratch_namespace_rename",
	mcp.WithDescription("Rename a namespace, moving its scratchpads unless migrate_scratchpads is false."),
	mcp.WithString("old_namespace", mcp.Required()),
	mcp.WithString("new_namespace", mcp.Required()),
	mcp.WithBoolean("migrate_scratchpads", mcp.Description("Move scratchpads to the new name (default true)")),
)

var namespaceDeleteToolDef = mcp.NewTool("scratch_namespace_delete",
	mcp.WithDescription("Delete a namespace. Fails while scratchpads reference it unless delete_scratchpads is true."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("namespace", mcp.Required()),
	mcp.WithBoolean("delete_scratchpads", mcp.Description("Also delete the namespace's scratchpads")),
)
