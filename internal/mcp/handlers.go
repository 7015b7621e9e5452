package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// CreateRequest represents the arguments for scratch_create.
type CreateRequest struct {
	ScratchID string          `json:"scratch_id,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Cells     []ops.CellInput `json:"cells,omitempty"`
}

// ReadRequest represents the arguments for scratch_read.
type ReadRequest struct {
	ScratchID       string   `json:"scratch_id"`
	Indices         []int    `json:"indices,omitempty"`
	CellIDs         []string `json:"cell_ids,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Namespaces      []string `json:"namespaces,omitempty"`
	IncludeMetadata *bool    `json:"include_metadata,omitempty"`
}

// ScratchRequest represents arguments that only name a pad.
type ScratchRequest struct {
	ScratchID string `json:"scratch_id"`
}

// AppendRequest represents the arguments for scratch_append_cell.
type AppendRequest struct {
	ScratchID string         `json:"scratch_id"`
	Cell      *ops.CellInput `json:"cell"`
}

// ReplaceRequest represents the arguments for scratch_replace_cell.
type ReplaceRequest struct {
	ScratchID string         `json:"scratch_id"`
	CellID    string         `json:"cell_id,omitempty"`
	Index     *int           `json:"index,omitempty"`
	NewIndex  *int           `json:"new_index,omitempty"`
	Cell      *ops.CellInput `json:"cell"`
}

// ValidateRequest represents the arguments for scratch_validate.
type ValidateRequest struct {
	ScratchID string `json:"scratch_id"`
	Indices   []int  `json:"indices,omitempty"`
}

// ListRequest represents the arguments for scratch_list.
type ListRequest struct {
	Namespaces []string `json:"namespaces,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Limit      *int     `json:"limit,omitempty"`
}

// ListTagsRequest represents the arguments for scratch_list_tags.
type ListTagsRequest struct {
	Namespaces []string `json:"namespaces,omitempty"`
}

// SearchRequest represents the arguments for scratch_search.
type SearchRequest struct {
	Query      string   `json:"query"`
	Namespaces []string `json:"namespaces,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Limit      *int     `json:"limit,omitempty"`
}

// GetSchemaRequest represents the arguments for scratch_get_schema.
type GetSchemaRequest struct {
	ScratchID string `json:"scratch_id"`
	SchemaID  string `json:"schema_id"`
}

// UpsertSchemaRequest represents the arguments for scratch_upsert_schema.
type UpsertSchemaRequest struct {
	ScratchID string             `json:"scratch_id"`
	Schema    *ops.SchemaRequest `json:"schema"`
}

// NamespaceRequest represents the arguments for scratch_namespace_create.
type NamespaceRequest struct {
	Namespace string `json:"namespace"`
}

// NamespaceRenameRequest represents the arguments for scratch_namespace_rename.
type NamespaceRenameRequest struct {
	OldNamespace       string `json:"old_namespace"`
	NewNamespace       string `json:"new_namespace"`
	MigrateScratchpads *bool  `json:"migrate_scratchpads,omitempty"`
}

// NamespaceDeleteRequest represents the arguments for scratch_namespace_delete.
type NamespaceDeleteRequest struct {
	Namespace         string `json:"namespace"`
	DeleteScratchpads bool   `json:"delete_scratchpads,omitempty"`
}

// Handler implementations

// HandleCreate handles the scratch_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Create(ctx, h.env, ops.CreateInput{
		ScratchID: input.ScratchID,
		Metadata:  input.Metadata,
		Cells:     input.Cells,
	}))
}

// HandleRead handles the scratch_read tool call.
func (h *Handlers) HandleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReadRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Read(ctx, h.env, ops.ReadInput{
		ScratchID:       input.ScratchID,
		Indices:         input.Indices,
		CellIDs:         input.CellIDs,
		Tags:            input.Tags,
		Namespaces:      input.Namespaces,
		IncludeMetadata: input.IncludeMetadata,
	}))
}

// HandleListCells handles the scratch_list_cells tool call.
func (h *Handlers) HandleListCells(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScratchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListCells(ctx, h.env, ops.ListCellsInput{ScratchID: input.ScratchID}))
}

// HandleDelete handles the scratch_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScratchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Delete(ctx, h.env, ops.DeleteInput{ScratchID: input.ScratchID}))
}

// HandleAppend handles the scratch_append_cell tool call.
func (h *Handlers) HandleAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AppendRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Cell == nil {
		return errorResult(errors.NewValidation("cell is required")), nil
	}
	return respond(ops.Append(ctx, h.env, ops.AppendInput{ScratchID: input.ScratchID, Cell: *input.Cell}))
}

// HandleReplace handles the scratch_replace_cell tool call.
func (h *Handlers) HandleReplace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReplaceRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Cell == nil {
		return errorResult(errors.NewValidation("cell is required")), nil
	}
	return respond(ops.Replace(ctx, h.env, ops.ReplaceInput{
		ScratchID: input.ScratchID,
		CellID:    input.CellID,
		Index:     input.Index,
		NewIndex:  input.NewIndex,
		Cell:      *input.Cell,
	}))
}

// HandleValidate handles the scratch_validate tool call.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ValidateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Validate(ctx, h.env, ops.ValidateInput{ScratchID: input.ScratchID, Indices: input.Indices}))
}

// HandleList handles the scratch_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.List(ctx, h.env, ops.ListInput{
		Namespaces: input.Namespaces,
		Tags:       input.Tags,
		Limit:      input.Limit,
	}))
}

// HandleListTags handles the scratch_list_tags tool call.
func (h *Handlers) HandleListTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListTagsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListTags(ctx, h.env, ops.ListTagsInput{Namespaces: input.Namespaces}))
}

// HandleSearch handles the scratch_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Search(ctx, h.env, ops.SearchInput{
		Query:      input.Query,
		Namespaces: input.Namespaces,
		Tags:       input.Tags,
		Limit:      input.Limit,
	}))
}

// HandleListSchemas handles the scratch_list_schemas tool call.
func (h *Handlers) HandleListSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScratchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListSchemas(ctx, h.env, ops.ListSchemasInput{ScratchID: input.ScratchID}))
}

// HandleGetSchema handles the scratch_get_schema tool call.
func (h *Handlers) HandleGetSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetSchemaRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.GetSchema(ctx, h.env, ops.GetSchemaInput{ScratchID: input.ScratchID, SchemaID: input.SchemaID}))
}

// HandleUpsertSchema handles the scratch_upsert_schema tool call.
func (h *Handlers) HandleUpsertSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpsertSchemaRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Schema == nil {
		return errorResult(errors.NewValidation("schema request must include a JSON object under 'schema'")), nil
	}
	return respond(ops.UpsertSchema(ctx, h.env, ops.UpsertSchemaInput{ScratchID: input.ScratchID, Schema: *input.Schema}))
}

// HandleNamespaceList handles the scratch_namespace_list tool call.
func (h *Handlers) HandleNamespaceList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.NamespaceList(ctx, h.env))
}

// HandleNamespaceCreate handles the scratch_namespace_create tool call.
func (h *Handlers) HandleNamespaceCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NamespaceRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.NamespaceCreate(ctx, h.env, ops.NamespaceCreateInput{Namespace: input.Namespace}))
}

// HandleNamespaceRename handles the scratch_namespace_rename tool call.
func (h *Handlers) HandleNamespaceRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NamespaceRenameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.NamespaceRename(ctx, h.env, ops.NamespaceRenameInput{
		OldNamespace:       input.OldNamespace,
		NewNamespace:       input.NewNamespace,
		MigrateScratchpads: input.MigrateScratchpads,
	}))
}

// HandleNamespaceDelete handles the scratch_namespace_delete tool call.
func (h *Handlers) HandleNamespaceDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NamespaceDeleteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.NamespaceDelete(ctx, h.env, ops.NamespaceDeleteInput{
		Namespace:         input.Namespace,
		DeleteScratchpads: input.DeleteScratchpads,
	}))
}

// Result helpers

// respond renders an operation's outcome. Domain failures become error
// results, never Go errors, so the client always gets a structured payload.
func respond[T any](out T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// errorResult creates an MCP error result from any error.
// INTERNAL errors never expose details or driver messages.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.ScratchError
	if stderrors.As(err, &sErr) && sErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
			"status":  sErr.Status,
		}
		if sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
