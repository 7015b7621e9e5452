package ops

import (
	"context"
	"slices"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// ReadInput contains parameters for the Read operation.
type ReadInput struct {
	ScratchID string

	// Filters, applied in order: indices, cell ids, tags
	Indices []int
	CellIDs []string
	Tags    []string

	// Namespaces, when set, must contain the pad's namespace
	Namespaces []string

	// IncludeMetadata defaults to true
	IncludeMetadata *bool
}

// ReadOutput contains the result of the Read operation.
type ReadOutput struct {
	Scratchpad map[string]any `json:"scratchpad"`
}

// Read loads a pad, refreshing its last access time, and returns the cells
// that survive the filters.
func Read(ctx context.Context, env *Env, input ReadInput) (out *ReadOutput, err error) {
	done, err := env.begin("read")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	namespaces, err := normalizeNamespaceFilter(input.Namespaces)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTagFilter(input.Tags)
	if err != nil {
		return nil, err
	}

	pad, err := env.Store.Read(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}
	if namespaces != nil && !slices.Contains(namespaces, pad.Namespace()) {
		var ns any
		if n := pad.Namespace(); n != "" {
			ns = n
		}
		return nil, errors.NewUnauthorized("scratchpad does not belong to an allowed namespace").
			WithDetail("scratch_id", pad.ID).
			WithDetail("namespace", ns)
	}

	cells, err := filterCells(pad, input.Indices, input.CellIDs, tags)
	if err != nil {
		return nil, err
	}
	filtered := &notebook.Scratchpad{
		ID:           pad.ID,
		Cells:        cells,
		Metadata:     pad.Metadata,
		CreatedAt:    pad.CreatedAt,
		UpdatedAt:    pad.UpdatedAt,
		LastAccessAt: pad.LastAccessAt,
	}
	include := input.IncludeMetadata == nil || *input.IncludeMetadata
	return &ReadOutput{Scratchpad: padPayload(filtered, include)}, nil
}

// ListCellsInput contains parameters for the ListCells operation.
type ListCellsInput struct {
	ScratchID string
}

// CellSummary is the lean view of one cell.
type CellSummary struct {
	CellID   string         `json:"cell_id"`
	Index    int            `json:"index"`
	Language string         `json:"language"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListCellsOutput contains the result of the ListCells operation.
type ListCellsOutput struct {
	ScratchID string        `json:"scratch_id"`
	Cells     []CellSummary `json:"cells"`
}

// ListCells returns the ordered cell summaries of a pad without content.
func ListCells(ctx context.Context, env *Env, input ListCellsInput) (out *ListCellsOutput, err error) {
	done, err := env.begin("list_cells")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	cells, err := env.Store.ListCells(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}
	out = &ListCellsOutput{ScratchID: input.ScratchID, Cells: make([]CellSummary, 0, len(cells))}
	for i := range cells {
		out.Cells = append(out.Cells, CellSummary{
			CellID:   cells[i].CellID,
			Index:    cells[i].Index,
			Language: cells[i].Language,
			Tags:     cells[i].Tags(),
			Metadata: cells[i].Metadata,
		})
	}
	return out, nil
}
