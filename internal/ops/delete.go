package ops

import "context"

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ScratchID string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ScratchID string `json:"scratch_id"`
	Deleted   bool   `json:"deleted"`
}

// Delete removes a pad and its embeddings. Deleting a missing pad succeeds
// with Deleted=false.
func Delete(ctx context.Context, env *Env, input DeleteInput) (out *DeleteOutput, err error) {
	done, err := env.begin("delete")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	deleted, err := env.Store.Delete(ctx, input.ScratchID)
	if err != nil {
		return nil, err
	}
	if deleted {
		if err := env.Search.DeletePadEmbeddings(ctx, input.ScratchID); err != nil {
			return nil, err
		}
	}
	return &DeleteOutput{ScratchID: input.ScratchID, Deleted: deleted}, nil
}
