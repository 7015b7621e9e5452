package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/search"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query      string
	Namespaces []string
	Tags       []string

	// Limit defaults to DefaultSearchLimit
	Limit *int
}

// Search runs a semantic query over the tenant's pads and cells.
func Search(ctx context.Context, env *Env, input SearchInput) (out *search.Result, err error) {
	done, err := env.begin("search")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewValidation("query must not be empty")
	}
	limit := DefaultSearchLimit
	if input.Limit != nil {
		limit = *input.Limit
	}
	return env.Search.Search(ctx, query, input.Namespaces, input.Tags, limit)
}
