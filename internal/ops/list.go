package ops

import (
	"context"

	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/storage"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Namespaces []string
	Tags       []string

	// Limit caps the result; nil or zero returns every match
	Limit *int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Scratchpads []notebook.Summary `json:"scratchpads"`
}

// List returns lean summaries of the tenant's pads.
func List(ctx context.Context, env *Env, input ListInput) (out *ListOutput, err error) {
	done, err := env.begin("list")
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
	limit, err := normalizeLimit(input.Limit)
	if err != nil {
		return nil, err
	}

	summaries, err := env.Store.List(ctx, storage.ListFilter{Namespaces: namespaces, Tags: tags, Limit: limit})
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []notebook.Summary{}
	}
	return &ListOutput{Scratchpads: summaries}, nil
}

// ListTagsInput contains parameters for the ListTags operation.
type ListTagsInput struct {
	Namespaces []string
}

// ListTags returns the pad-level and cell-level tags in use.
func ListTags(ctx context.Context, env *Env, input ListTagsInput) (out *storage.TagLists, err error) {
	done, err := env.begin("list_tags")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	namespaces, err := normalizeNamespaceFilter(input.Namespaces)
	if err != nil {
		return nil, err
	}
	tags, err := env.Store.ListTags(ctx, namespaces)
	if err != nil {
		return nil, err
	}
	return &tags, nil
}
