package notebook

import (
	"fmt"
	"strings"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

// ToMap renders the cell as a JSON-ready payload.
func (c Cell) ToMap() map[string]any {
	payload := map[string]any{
		"cell_id":  c.CellID,
		"index":    c.Index,
		"language": c.Language,
		"content":  c.Content,
		"validate": c.Validate,
	}
	if c.JSONSchema != nil {
		payload["json_schema"] = c.JSONSchema
	}
	if tags := c.Tags(); len(tags) > 0 {
		payload["tags"] = tags
	}
	if len(c.Metadata) > 0 {
		payload["metadata"] = cloneMap(c.Metadata)
	}
	return payload
}

// CellFromMap is the inverse of Cell.ToMap. Top-level "tags" merge into metadata tags.
func CellFromMap(payload map[string]any) (Cell, error) {
	cellID, ok := payload["cell_id"].(string)
	if !ok || cellID == "" {
		return Cell{}, scerrors.NewValidation("cell payload missing cell_id")
	}
	index, err := intValue(payload["index"])
	if err != nil {
		return Cell{}, scerrors.NewValidation(fmt.Sprintf("cell %s: %v", cellID, err))
	}
	language, _ := payload["language"].(string)
	content, _ := payload["content"].(string)
	cell, err := NewCell(cellID, index, language, content)
	if err != nil {
		return Cell{}, err
	}
	cell.Validate, _ = payload["validate"].(bool)
	cell.JSONSchema = payload["json_schema"]

	metadata, _ := payload["metadata"].(map[string]any)
	metadata = NormalizeCellMetadata(metadata)
	if tags := NormalizeTags(payload["tags"]); len(tags) > 0 {
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata["tags"] = MergeTags(NormalizeTags(metadata["tags"]), tags)
	}
	cell.Metadata = metadata
	return cell, nil
}

// ToMap renders the pad with its derived fields: aggregate tags, cell_tags,
// namespace and the canonical text fields are lifted to the top level.
func (p *Scratchpad) ToMap() map[string]any {
	cells := make([]any, len(p.Cells))
	for i := range p.Cells {
		cells[i] = p.Cells[i].ToMap()
	}
	payload := map[string]any{
		"scratch_id": p.ID,
		"cells":      cells,
	}

	metadata := NormalizeMetadata(p.Metadata)
	if tags := p.AggregateTags(); len(tags) > 0 {
		payload["tags"] = tags
	}
	if cellTags := p.CellTags(); len(cellTags) > 0 {
		payload["cell_tags"] = cellTags
	}
	if ns := p.Namespace(); ns != "" {
		payload["namespace"] = ns
	}
	for _, field := range CanonicalFields {
		if v := p.Field(field); v != "" {
			payload[field] = v
		}
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	return payload
}

// ScratchpadFromMap is the inverse of Scratchpad.ToMap.
// Duplicate cell indices are rejected.
func ScratchpadFromMap(payload map[string]any) (*Scratchpad, error) {
	id, _ := payload["scratch_id"].(string)
	if id == "" {
		return nil, scerrors.NewValidation("scratchpad payload missing scratch_id")
	}

	var rawCells []map[string]any
	switch v := payload["cells"].(type) {
	case nil:
	case []map[string]any:
		rawCells = v
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, scerrors.NewValidation("cells must be objects")
			}
			rawCells = append(rawCells, m)
		}
	default:
		return nil, scerrors.NewValidation("cells must be a list")
	}

	pad := &Scratchpad{ID: id}
	seen := make(map[int]bool, len(rawCells))
	for _, raw := range rawCells {
		cell, err := CellFromMap(raw)
		if err != nil {
			return nil, err
		}
		if seen[cell.Index] {
			return nil, scerrors.NewValidation(fmt.Sprintf("duplicate cell index %d", cell.Index))
		}
		seen[cell.Index] = true
		pad.Cells = append(pad.Cells, cell)
	}

	metadata, _ := payload["metadata"].(map[string]any)
	metadata = cloneMap(metadata)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	if ns, ok := payload["namespace"]; ok && ns != nil {
		metadata["namespace"] = ns
	}
	if tags := NormalizeTags(payload["tags"]); len(tags) > 0 {
		metadata["tags"] = tags
	}
	for _, field := range CanonicalFields {
		if v, ok := payload[field]; ok && v != nil {
			metadata[field] = v
		}
	}
	pad.Metadata = NormalizeMetadata(metadata)
	return pad, nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("index must be an integer")
		}
		return int(n), nil
	case string:
		var i int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &i); err != nil {
			return 0, fmt.Errorf("index must be an integer")
		}
		return i, nil
	default:
		return 0, fmt.Errorf("index must be an integer")
	}
}
