package ops

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// generatedIDAttempts bounds the search for an unused generated id.
const generatedIDAttempts = 16

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	// ScratchID is generated as scratch-<12 hex> when empty
	ScratchID string
	Metadata  map[string]any
	Cells     []CellInput
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	Scratchpad         map[string]any     `json:"scratchpad"`
	EvictedScratchpads []string           `json:"evicted_scratchpads,omitempty"`
	Validation         []*validate.Result `json:"validation,omitempty"`
}

// Create stores a new pad. Cells flagged for validation must pass before
// anything is written. If indexing the new pad fails, the pad is removed and
// any pad evicted to make room for it is restored.
func Create(ctx context.Context, env *Env, input CreateInput) (out *CreateOutput, err error) {
	done, err := env.begin("create")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	id := strings.TrimSpace(input.ScratchID)
	if id == "" {
		if id, err = env.generateScratchID(ctx); err != nil {
			return nil, err
		}
	} else {
		if err := env.Store.ValidateIdentifier(id); err != nil {
			return nil, err
		}
		exists, err := env.Store.Has(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.NewAlreadyExists(id)
		}
	}

	metadata := notebook.NormalizeMetadata(input.Metadata)
	cells := make([]notebook.Cell, 0, len(input.Cells))
	for i, ci := range input.Cells {
		cell, err := buildCell(ci, i)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	results, err := env.enforceValidation(ctx, cells, notebook.NormalizeRegistry(metadata["schemas"]))
	if err != nil {
		return nil, err
	}

	pad, eviction, err := env.Store.Create(ctx, &notebook.Scratchpad{ID: id, Cells: cells, Metadata: metadata}, false)
	if err != nil {
		return nil, err
	}
	if err := env.Search.ReindexPad(ctx, pad); err != nil {
		if _, derr := env.Store.Delete(ctx, id); derr != nil {
			env.logger().Error("failed to remove scratchpad after index failure", "scratch_id", id, "error", derr)
		}
		env.Store.RestoreEviction(ctx, eviction)
		return nil, err
	}

	out = &CreateOutput{
		Scratchpad:         padPayload(pad, true),
		Validation:         results,
		EvictedScratchpads: eviction.Evicted(),
	}
	return out, nil
}

// generateScratchID picks an unused scratch-<12 hex> identifier.
func (e *Env) generateScratchID(ctx context.Context) (string, error) {
	for range generatedIDAttempts {
		id := "scratch-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		exists, err := e.Store.Has(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.NewConfig("could not generate an unused scratchpad id")
}
