package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// encodePad flattens pad into a row for tenant. created_at is carried over
// from existing; last_access_at is refreshed only when touch is set.
func encodePad(tenant string, pad *notebook.Scratchpad, existing *db.ScratchpadRow, now int64, touch bool) (*db.ScratchpadRow, error) {
	metadata := notebook.NormalizeMetadata(pad.Metadata)
	registry := notebook.NormalizeRegistry(metadata["schemas"])
	delete(metadata, "schemas")

	cells := make([]map[string]any, len(pad.Cells))
	for i := range pad.Cells {
		cells[i] = pad.Cells[i].ToMap()
	}

	metadataJSON, err := encodeJSON(metadata, "{}")
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("encode metadata: %w", err))
	}
	cellsJSON, err := encodeJSON(cells, "[]")
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("encode cells: %w", err))
	}
	schemasJSON, err := encodeJSON(registry, "{}")
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("encode schemas: %w", err))
	}

	row := &db.ScratchpadRow{
		TenantID:     tenant,
		ScratchID:    pad.ID,
		Namespace:    optional(pad.Namespace()),
		Title:        optional(pad.Field("title")),
		Description:  optional(pad.Field("description")),
		Summary:      optional(pad.Field("summary")),
		Tags:         pad.AggregateTags(),
		CellTags:     pad.CellTags(),
		CellCount:    len(pad.Cells),
		MetadataJSON: metadataJSON,
		CellsJSON:    cellsJSON,
		SchemasJSON:  schemasJSON,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessAt: now,
	}
	if existing != nil {
		row.CreatedAt = existing.CreatedAt
		if !touch {
			row.LastAccessAt = existing.LastAccessAt
		}
	}
	return row, nil
}

// decodePad rebuilds a pad from a row. Cells come back ordered by index.
func decodePad(row *db.ScratchpadRow) (*notebook.Scratchpad, error) {
	var metadata map[string]any
	if err := decodeJSON(row.MetadataJSON, &metadata); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode metadata for %s: %w", row.ScratchID, err))
	}
	var rawCells []map[string]any
	if err := decodeJSON(row.CellsJSON, &rawCells); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode cells for %s: %w", row.ScratchID, err))
	}
	var schemas map[string]any
	if err := decodeJSON(row.SchemasJSON, &schemas); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode schemas for %s: %w", row.ScratchID, err))
	}

	pad := &notebook.Scratchpad{
		ID:           row.ScratchID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastAccessAt: row.LastAccessAt,
	}
	for _, raw := range rawCells {
		cell, err := notebook.CellFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("decode cell for %s: %w", row.ScratchID, err)
		}
		pad.Cells = append(pad.Cells, cell)
	}
	sort.SliceStable(pad.Cells, func(i, j int) bool { return pad.Cells[i].Index < pad.Cells[j].Index })

	if len(schemas) > 0 {
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata["schemas"] = schemas
	}
	pad.Metadata = notebook.NormalizeMetadata(metadata)
	return pad, nil
}

func encodeJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
