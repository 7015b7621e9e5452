package ops

import (
	"context"
	"crypto/rand"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// CellInput is a cell as supplied by a caller. A nil Metadata means the
// caller omitted it, which replace treats as "keep the existing metadata".
type CellInput struct {
	CellID     string         `json:"cell_id,omitempty"`
	Language   string         `json:"language"`
	Content    string         `json:"content"`
	Validate   bool           `json:"validate,omitempty"`
	JSONSchema any            `json:"json_schema,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// newCellID returns a ULID for a cell the caller did not name.
func newCellID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}

// buildCell turns input into a cell at index.
func buildCell(input CellInput, index int) (notebook.Cell, error) {
	language := strings.ToLower(strings.TrimSpace(input.Language))
	if language == "" {
		return notebook.Cell{}, errors.NewValidation("cell language is required")
	}
	cellID := strings.TrimSpace(input.CellID)
	if cellID == "" {
		var err error
		if cellID, err = newCellID(); err != nil {
			return notebook.Cell{}, err
		}
	}
	cell, err := notebook.NewCell(cellID, index, language, input.Content)
	if err != nil {
		return notebook.Cell{}, err
	}
	cell.Validate = input.Validate
	cell.JSONSchema = input.JSONSchema
	cell.Metadata = notebook.NormalizeCellMetadata(input.Metadata)
	return cell, nil
}

// enforceValidation validates cells that asked for it and rejects the write
// when any of them fails. Results for every validated cell are returned.
func (e *Env) enforceValidation(ctx context.Context, cells []notebook.Cell, registry notebook.Registry) ([]*validate.Result, error) {
	var targets []notebook.Cell
	for _, c := range cells {
		if c.Validate {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}
	results, err := e.Validator.ValidateCells(ctx, targets, registry, e.validationTimeout())
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if !r.Valid {
			return nil, errors.NewValidation("cell validation failed").
				WithDetail("cell_index", r.CellIndex).
				WithDetail("errors", r.ErrorMessages()).
				WithDetail("warnings", r.WarningMessages())
		}
	}
	return results, nil
}

func selectByIndices(pad *notebook.Scratchpad, indices []int) ([]notebook.Cell, error) {
	byIndex := make(map[int]notebook.Cell, len(pad.Cells))
	for _, c := range pad.Cells {
		byIndex[c.Index] = c
	}
	out := make([]notebook.Cell, 0, len(indices))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		c, ok := byIndex[i]
		if !ok {
			return nil, errors.NewInvalidIndex(i)
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, c)
	}
	return out, nil
}

func selectByIDs(cells []notebook.Cell, scratchID string, ids []string) ([]notebook.Cell, error) {
	byID := make(map[string]notebook.Cell, len(cells))
	for _, c := range cells {
		byID[c.CellID] = c
	}
	out := make([]notebook.Cell, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, errors.NewNotFoundf("cell id %s not found", id).
				WithDetail("scratch_id", scratchID).
				WithDetail("cell_id", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out, nil
}

// filterCells applies index, id and tag filters in that order. Ids must
// exist in the pad; when indices are also given only cells matching both survive.
func filterCells(pad *notebook.Scratchpad, indices []int, cellIDs, tags []string) ([]notebook.Cell, error) {
	cells := pad.Cells
	var err error
	if len(indices) > 0 {
		if cells, err = selectByIndices(pad, indices); err != nil {
			return nil, err
		}
	}
	if len(cellIDs) > 0 {
		byID, err := selectByIDs(pad.Cells, pad.ID, cellIDs)
		if err != nil {
			return nil, err
		}
		if len(indices) > 0 {
			kept := make(map[string]bool, len(cells))
			for _, c := range cells {
				kept[c.CellID] = true
			}
			byID = slices.DeleteFunc(byID, func(c notebook.Cell) bool { return !kept[c.CellID] })
		}
		cells = byID
	}
	if len(tags) > 0 {
		want := make(map[string]bool, len(tags))
		for _, t := range tags {
			want[t] = true
		}
		kept := make([]notebook.Cell, 0, len(cells))
		for _, c := range cells {
			for _, t := range c.Tags() {
				if want[t] {
					kept = append(kept, c)
					break
				}
			}
		}
		cells = kept
	}
	return cells, nil
}
