package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/ops"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "scratchpad"

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"scratch_create": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"scratch_read": {
		def:     readToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRead },
	},
	"scratch_list_cells": {
		def:     listCellsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListCells },
	},
	"scratch_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"scratch_append_cell": {
		def:     appendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAppend },
	},
	"scratch_replace_cell": {
		def:     replaceToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReplace },
	},
	"scratch_validate": {
		def:     validateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleValidate },
	},
	"scratch_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"scratch_list_tags": {
		def:     listTagsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListTags },
	},
	"scratch_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"scratch_list_schemas": {
		def:     listSchemasToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListSchemas },
	},
	"scratch_get_schema": {
		def:     getSchemaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetSchema },
	},
	"scratch_upsert_schema": {
		def:     upsertSchemaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpsertSchema },
	},
	"scratch_namespace_list": {
		def:     namespaceListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNamespaceList },
	},
	"scratch_namespace_create": {
		def:     namespaceCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNamespaceCreate },
	},
	"scratch_namespace_rename": {
		def:     namespaceRenameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNamespaceRename },
	},
	"scratch_namespace_delete": {
		def:     namespaceDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNamespaceDelete },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the scratchpad tools registered.
// Tools listed in cfg.DisabledTools are left out.
func NewServer(env *ops.Env, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes or the process is signalled.
func Run(env *ops.Env, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(env, cfg, version))
}
