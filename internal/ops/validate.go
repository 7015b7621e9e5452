package ops

import (
	"context"

	"github.com/hpungsan/scratchpad/internal/validate"
)

// ValidateInput contains parameters for the Validate operation.
type ValidateInput struct {
	ScratchID string

	// Indices selects cells; empty validates every cell
	Indices []int
}

// ValidateOutput contains the result of the Validate operation.
type ValidateOutput struct {
	ScratchID string             `json:"scratch_id"`
	Results   []*validate.Result `json:"results"`
}

// Validate runs the validators over a pad's cells and reports the outcome.
// Failures are diagnostics only and never change the pad.
func Validate(ctx context.Context, env *Env, input ValidateInput) (out *ValidateOutput, err error) {
	done, err := env.begin("validate")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	pad, err := env.Store.Read(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}
	cells := pad.Cells
	if len(input.Indices) > 0 {
		if cells, err = selectByIndices(pad, input.Indices); err != nil {
			return nil, err
		}
	}

	results, err := env.Validator.ValidateCells(ctx, cells, pad.Schemas(), env.validationTimeout())
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*validate.Result{}
	}
	return &ValidateOutput{ScratchID: pad.ID, Results: results}, nil
}
