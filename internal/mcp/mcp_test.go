package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/ops"
	"github.com/hpungsan/scratchpad/internal/search"
	"github.com/hpungsan/scratchpad/internal/shutdown"
	"github.com/hpungsan/scratchpad/internal/storage"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// testSetup creates a temporary database and an operation env over it.
func testSetup(t *testing.T) (*ops.Env, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	store, err := storage.New(context.Background(), database, cfg)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	factory := func() (search.Embedder, error) { return search.NewHashEmbedder(""), nil }
	env := &ops.Env{
		Store:     store,
		Search:    search.NewService(store, true, factory, nil),
		Validator: validate.NewDispatcher(nil),
		Shutdown:  shutdown.New(),
		Config:    cfg,
	}
	return env, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultPayload decodes the JSON text content of a tool result.
func resultPayload(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", r.Content[0])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	return payload
}

func errorCode(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if !r.IsError {
		return ""
	}
	errObj := resultPayload(t, r)["error"].(map[string]any)
	return errObj["code"].(string)
}

func TestHandleCreate(t *testing.T) {
	env, _ := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		errorCode string
	}{
		{
			name: "create with id and cells",
			args: map[string]any{
				"scratch_id": "pad",
				"metadata":   map[string]any{"title": "Notes", "tags": []any{"a"}},
				"cells":      []any{map[string]any{"language": "md", "content": "# hi"}},
			},
		},
		{
			name:      "duplicate id",
			args:      map[string]any{"scratch_id": "pad"},
			errorCode: "INVALID_ID",
		},
		{
			name:      "metadata not an object",
			args:      map[string]any{"metadata": "nope"},
			errorCode: "VALIDATION_ERROR",
		},
		{
			name: "unsupported language",
			args: map[string]any{
				"cells": []any{map[string]any{"language": "cobol", "content": "x"}},
			},
			errorCode: "VALIDATION_ERROR",
		},
		{
			name: "generated id",
			args: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleCreate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if got := errorCode(t, result); got != tt.errorCode {
				t.Fatalf("error code = %q, want %q", got, tt.errorCode)
			}
			if tt.errorCode == "" {
				pad := resultPayload(t, result)["scratchpad"].(map[string]any)
				if pad["scratch_id"] == "" {
					t.Error("expected scratch_id in response")
				}
			}
		})
	}
}

func TestHandleReadAndAppend(t *testing.T) {
	env, _ := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	if r, _ := h.HandleCreate(ctx, makeRequest(map[string]any{"scratch_id": "pad"})); r.IsError {
		t.Fatalf("create failed: %v", resultPayload(t, r))
	}

	r, _ := h.HandleAppend(ctx, makeRequest(map[string]any{
		"scratch_id": "pad",
		"cell": map[string]any{
			"language": "json",
			"content":  `{"ok": true}`,
			"validate": true,
			"metadata": map[string]any{"tags": []any{"cfg"}},
		},
	}))
	if r.IsError {
		t.Fatalf("append failed: %v", resultPayload(t, r))
	}
	validation := resultPayload(t, r)["validation"].([]any)
	if len(validation) != 1 {
		t.Fatalf("validation results = %d, want 1", len(validation))
	}

	r, _ = h.HandleAppend(ctx, makeRequest(map[string]any{"scratch_id": "pad"}))
	if got := errorCode(t, r); got != "VALIDATION_ERROR" {
		t.Errorf("missing cell code = %q, want VALIDATION_ERROR", got)
	}

	r, _ = h.HandleRead(ctx, makeRequest(map[string]any{
		"scratch_id":       "pad",
		"tags":             []any{"cfg"},
		"include_metadata": false,
	}))
	if r.IsError {
		t.Fatalf("read failed: %v", resultPayload(t, r))
	}
	pad := resultPayload(t, r)["scratchpad"].(map[string]any)
	if cells := pad["cells"].([]any); len(cells) != 1 {
		t.Errorf("cells = %d, want 1", len(cells))
	}

	r, _ = h.HandleRead(ctx, makeRequest(map[string]any{"scratch_id": "missing"}))
	if got := errorCode(t, r); got != "NOT_FOUND" {
		t.Errorf("missing pad code = %q, want NOT_FOUND", got)
	}
}

func TestHandleReplace_Ambiguous(t *testing.T) {
	env, _ := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	h.HandleCreate(ctx, makeRequest(map[string]any{
		"scratch_id": "pad",
		"cells":      []any{map[string]any{"cell_id": "c0", "language": "txt", "content": "x"}},
	}))

	r, _ := h.HandleReplace(ctx, makeRequest(map[string]any{
		"scratch_id": "pad",
		"cell_id":    "c0",
		"index":      0,
		"cell":       map[string]any{"language": "txt", "content": "y"},
	}))
	if got := errorCode(t, r); got != "AMBIGUOUS_ADDRESSING" {
		t.Fatalf("code = %q, want AMBIGUOUS_ADDRESSING", got)
	}

	r, _ = h.HandleReplace(ctx, makeRequest(map[string]any{
		"scratch_id": "pad",
		"index":      0,
		"cell":       map[string]any{"language": "txt", "content": "y"},
	}))
	if r.IsError {
		t.Fatalf("replace failed: %v", resultPayload(t, r))
	}
}

func TestHandleList_AndTags(t *testing.T) {
	env, _ := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	h.HandleCreate(ctx, makeRequest(map[string]any{
		"scratch_id": "pad",
		"metadata":   map[string]any{"namespace": "team", "tags": []any{"red"}},
	}))

	r, _ := h.HandleList(ctx, makeRequest(map[string]any{"namespaces": []any{"team"}}))
	if r.IsError {
		t.Fatalf("list failed: %v", resultPayload(t, r))
	}
	pads := resultPayload(t, r)["scratchpads"].([]any)
	if len(pads) != 1 {
		t.Fatalf("scratchpads = %d, want 1", len(pads))
	}
	entry := pads[0].(map[string]any)
	for _, key := range []string{"scratch_id", "title", "description", "namespace", "cell_count"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("list entry missing %q", key)
		}
	}

	r, _ = h.HandleList(ctx, makeRequest(map[string]any{"limit": -1}))
	if got := errorCode(t, r); got != "VALIDATION_ERROR" {
		t.Errorf("negative limit code = %q, want VALIDATION_ERROR", got)
	}

	r, _ = h.HandleListTags(ctx, makeRequest(map[string]any{}))
	tags := resultPayload(t, r)["scratchpad_tags"].([]any)
	if len(tags) != 1 || tags[0] != "red" {
		t.Errorf("scratchpad_tags = %v, want [red]", tags)
	}
}

func TestHandleNamespaces(t *testing.T) {
	env, _ := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	r, _ := h.HandleNamespaceCreate(ctx, makeRequest(map[string]any{"namespace": "alpha"}))
	if created := resultPayload(t, r)["created"]; created != true {
		t.Fatalf("created = %v, want true", created)
	}
	r, _ = h.HandleNamespaceRename(ctx, makeRequest(map[string]any{"old_namespace": "alpha", "new_namespace": "beta"}))
	if r.IsError {
		t.Fatalf("rename failed: %v", resultPayload(t, r))
	}
	r, _ = h.HandleNamespaceList(ctx, makeRequest(nil))
	list := resultPayload(t, r)["namespaces"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["namespace"] != "beta" {
		t.Errorf("namespaces = %v, want [beta]", list)
	}
	r, _ = h.HandleNamespaceDelete(ctx, makeRequest(map[string]any{"namespace": "beta"}))
	if deleted := resultPayload(t, r)["deleted"]; deleted != true {
		t.Errorf("deleted = %v, want true", deleted)
	}
}

func TestHandleSchemas(t *testing.T) {
	env, _ := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	h.HandleCreate(ctx, makeRequest(map[string]any{"scratch_id": "pad"}))

	r, _ := h.HandleUpsertSchema(ctx, makeRequest(map[string]any{
		"scratch_id": "pad",
		"schema": map[string]any{
			"name":   "thing",
			"schema": map[string]any{"type": "object"},
		},
	}))
	if r.IsError {
		t.Fatalf("upsert failed: %v", resultPayload(t, r))
	}
	id := resultPayload(t, r)["schema"].(map[string]any)["id"].(string)

	r, _ = h.HandleGetSchema(ctx, makeRequest(map[string]any{"scratch_id": "pad", "schema_id": id}))
	if r.IsError {
		t.Fatalf("get failed: %v", resultPayload(t, r))
	}

	r, _ = h.HandleListSchemas(ctx, makeRequest(map[string]any{"scratch_id": "pad"}))
	if schemas := resultPayload(t, r)["schemas"].([]any); len(schemas) != 1 {
		t.Errorf("schemas = %d, want 1", len(schemas))
	}

	r, _ = h.HandleUpsertSchema(ctx, makeRequest(map[string]any{"scratch_id": "pad"}))
	if got := errorCode(t, r); got != "VALIDATION_ERROR" {
		t.Errorf("missing schema code = %q, want VALIDATION_ERROR", got)
	}
}

func TestHandleSearch_Disabled(t *testing.T) {
	env, _ := testSetup(t)
	env.Search = search.NewService(env.Store, false, nil, nil)
	h := NewHandlers(env)

	r, _ := h.HandleSearch(context.Background(), makeRequest(map[string]any{"query": "x"}))
	if got := errorCode(t, r); got != "CONFIG_ERROR" {
		t.Errorf("code = %q, want CONFIG_ERROR", got)
	}
}

func TestHandle_ShuttingDown(t *testing.T) {
	env, _ := testSetup(t)
	env.Shutdown.RequestShutdown(0)
	h := NewHandlers(env)

	r, _ := h.HandleList(context.Background(), makeRequest(nil))
	if got := errorCode(t, r); got != "SHUTTING_DOWN" {
		t.Errorf("code = %q, want SHUTTING_DOWN", got)
	}
	status := resultPayload(t, r)["error"].(map[string]any)["status"]
	if status != float64(503) {
		t.Errorf("status = %v, want 503", status)
	}
}

func TestServerRegistration(t *testing.T) {
	env, cfg := testSetup(t)

	s := NewServer(env, cfg, "test")
	tools := s.ListTools()
	if len(tools) != len(AllToolNames()) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(AllToolNames()))
	}
	for _, name := range AllToolNames() {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
	if len(AllToolNames()) != 17 {
		t.Errorf("AllToolNames = %d, want 17", len(AllToolNames()))
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env, cfg := testSetup(t)

	cfg.DisabledTools = []string{"scratch_delete", "scratch_namespace_delete"}
	tools := NewServer(env, cfg, "test").ListTools()

	if len(tools) != 15 {
		t.Errorf("registered tool count = %d, want 15", len(tools))
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"scratch_read", "legacy_store", "bogus"})
	if len(unknown) != 2 || unknown[0] != "legacy_store" || unknown[1] != "bogus" {
		t.Errorf("unknown = %v, want [legacy_store bogus]", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	errObj := resultPayload(t, r)["error"].(map[string]any)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if errObj["message"] != "an internal error occurred" {
		t.Fatalf("message=%v leaked internals", errObj["message"])
	}
}

func TestErrorResult_WrappedErrorKeepsCode(t *testing.T) {
	r := errorResult(fmt.Errorf("cells[2]: %w", errors.NewInvalidIndex(2)))
	errObj := resultPayload(t, r)["error"].(map[string]any)
	if errObj["code"] != string(errors.ErrInvalidIndex) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidIndex)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("abc"))
	errObj := resultPayload(t, r)["error"].(map[string]any)
	if errObj["status"] != float64(404) {
		t.Errorf("status=%v, want 404", errObj["status"])
	}
	if _, ok := errObj["details"]; !ok {
		t.Error("expected details for NOT_FOUND")
	}
}
