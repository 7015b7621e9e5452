package ops

import (
	"context"
	"maps"
	"strings"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// AppendInput contains parameters for the Append operation.
type AppendInput struct {
	ScratchID string
	Cell      CellInput
}

// WriteOutput is the result of Append and Replace.
type WriteOutput struct {
	Scratchpad map[string]any     `json:"scratchpad"`
	Validation []*validate.Result `json:"validation,omitempty"`
}

// Append adds a cell at the end of a pad. A cell flagged for validation must
// pass first; a failed reindex restores the pad as it was.
func Append(ctx context.Context, env *Env, input AppendInput) (out *WriteOutput, err error) {
	done, err := env.begin("append")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	snap, err := env.Store.CaptureSnapshot(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}

	cell, err := buildCell(input.Cell, 0)
	if err != nil {
		return nil, err
	}
	var results []*validate.Result
	if cell.Validate {
		current, err := env.Store.Read(ctx, input.ScratchID)
		if err != nil {
			return nil, err
		}
		cell.Index = len(current.Cells)
		if results, err = env.enforceValidation(ctx, []notebook.Cell{cell}, current.Schemas()); err != nil {
			return nil, err
		}
	}

	pad, err := env.Store.AppendCell(ctx, input.ScratchID, cell)
	if err != nil {
		return nil, err
	}
	if err := env.Search.ReindexPad(ctx, pad); err != nil {
		env.rollback(ctx, snap, err)
		return nil, err
	}
	return &WriteOutput{Scratchpad: padPayload(pad, true), Validation: results}, nil
}

// ReplaceInput contains parameters for the Replace operation. Exactly one of
// CellID or Index addresses the target.
type ReplaceInput struct {
	ScratchID string
	CellID    string
	Index     *int

	// NewIndex moves the cell after replacing it
	NewIndex *int

	Cell CellInput
}

// Replace swaps the content of one cell, keeping its id. Metadata carries
// over when the caller omits it.
func Replace(ctx context.Context, env *Env, input ReplaceInput) (out *WriteOutput, err error) {
	done, err := env.begin("replace")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	cellID := strings.TrimSpace(input.CellID)
	if cellID != "" && input.Index != nil {
		return nil, errors.NewAmbiguousAddressing()
	}
	if cellID == "" && input.Index == nil {
		return nil, errors.NewValidation("either cell_id or index is required")
	}

	snap, err := env.Store.CaptureSnapshot(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}
	current, err := env.Store.Read(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}

	position := -1
	if input.Index != nil {
		if *input.Index < 0 || *input.Index >= len(current.Cells) {
			return nil, errors.NewInvalidIndex(*input.Index)
		}
		position = *input.Index
	} else if position = current.FindCell(cellID); position < 0 {
		return nil, errors.NewNotFoundf("cell id %s not found", cellID).
			WithDetail("scratch_id", input.ScratchID).
			WithDetail("cell_id", cellID)
	}
	existing := current.Cells[position]

	cell, err := buildCell(input.Cell, position)
	if err != nil {
		return nil, err
	}
	cell.CellID = existing.CellID
	if input.Cell.Metadata == nil {
		cell.Metadata = maps.Clone(existing.Metadata)
	}

	var results []*validate.Result
	if cell.Validate {
		if results, err = env.enforceValidation(ctx, []notebook.Cell{cell}, current.Schemas()); err != nil {
			return nil, err
		}
	}

	pad, err := env.Store.ReplaceCell(ctx, input.ScratchID, existing.CellID, cell, input.NewIndex)
	if err != nil {
		return nil, err
	}
	if err := env.Search.ReindexPad(ctx, pad); err != nil {
		env.rollback(ctx, snap, err)
		return nil, err
	}
	return &WriteOutput{Scratchpad: padPayload(pad, true), Validation: results}, nil
}
