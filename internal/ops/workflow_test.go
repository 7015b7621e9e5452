package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFullWorkflow exercises the pad lifecycle:
// create → append → replace → search → list → delete → read (not found)
func TestFullWorkflow(t *testing.T) {
	env, _ := newTestEnv(t, nil)
	ctx := context.Background()

	// 1. Create
	createOut, err := Create(ctx, env, CreateInput{
		ScratchID: "workflow",
		Metadata: map[string]any{
			"title":     "Incident checklist",
			"namespace": "ops",
			"tags":      []any{"incident"},
		},
		Cells: []CellInput{md("# Steps\n\nPage the on-call.")},
	})
	require.NoError(t, err)
	require.Equal(t, "workflow", createOut.Scratchpad["scratch_id"])

	// 2. Append a JSON cell that must validate
	appendOut, err := Append(ctx, env, AppendInput{ScratchID: "workflow", Cell: CellInput{
		CellID:   "config",
		Language: "json",
		Content:  `{"severity": "high"}`,
		Validate: true,
		Metadata: map[string]any{"tags": []any{"config"}},
	}})
	require.NoError(t, err)
	require.Len(t, cellsOf(t, appendOut.Scratchpad), 2)

	// 3. Replace the first cell by index
	_, err = Replace(ctx, env, ReplaceInput{ScratchID: "workflow", Index: intPtr(0), Cell: md("# Steps\n\nPage the on-call twice.")})
	require.NoError(t, err)

	// 4. Search returns the pad through the debug embedder
	hits, err := Search(ctx, env, SearchInput{Query: `{"severity": "high"}`, Limit: intPtr(3)})
	require.NoError(t, err)
	require.NotEmpty(t, hits.Hits)
	require.Equal(t, "debug-hash", hits.Embedder)
	require.Equal(t, "workflow", hits.Hits[0].ScratchID)

	// 5. List and list cells
	listOut, err := List(ctx, env, ListInput{Namespaces: []string{"ops"}})
	require.NoError(t, err)
	require.Len(t, listOut.Scratchpads, 1)
	require.Equal(t, 2, listOut.Scratchpads[0].CellCount)

	cellsOut, err := ListCells(ctx, env, ListCellsInput{ScratchID: "workflow"})
	require.NoError(t, err)
	require.Len(t, cellsOut.Cells, 2)
	require.Equal(t, "config", cellsOut.Cells[1].CellID)
	require.Equal(t, []string{"config"}, cellsOut.Cells[1].Tags)

	// 6. Delete, twice
	deleteOut, err := Delete(ctx, env, DeleteInput{ScratchID: "workflow"})
	require.NoError(t, err)
	require.True(t, deleteOut.Deleted)
	deleteOut, err = Delete(ctx, env, DeleteInput{ScratchID: "workflow"})
	require.NoError(t, err)
	require.False(t, deleteOut.Deleted)

	// 7. Read reports not found and search no longer returns the pad
	_, err = Read(ctx, env, ReadInput{ScratchID: "workflow"})
	require.Equal(t, "NOT_FOUND", code(err))

	hits, err = Search(ctx, env, SearchInput{Query: "anything"})
	require.NoError(t, err)
	require.Empty(t, hits.Hits)
}
