package ops

import (
	"context"

	"github.com/hpungsan/scratchpad/internal/storage"
)

// NamespaceListOutput contains the result of the NamespaceList operation.
type NamespaceListOutput struct {
	Namespaces []storage.NamespaceInfo `json:"namespaces"`
}

// NamespaceList returns the tenant's namespaces with their pad counts.
func NamespaceList(ctx context.Context, env *Env) (out *NamespaceListOutput, err error) {
	done, err := env.begin("namespace_list")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	infos, err := env.Store.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []storage.NamespaceInfo{}
	}
	return &NamespaceListOutput{Namespaces: infos}, nil
}

// NamespaceCreateInput contains parameters for the NamespaceCreate operation.
type NamespaceCreateInput struct {
	Namespace string
}

// NamespaceCreateOutput contains the result of the NamespaceCreate operation.
type NamespaceCreateOutput struct {
	Namespace string `json:"namespace"`
	Created   bool   `json:"created"`
}

// NamespaceCreate registers a namespace. Registering an existing one is not an error.
func NamespaceCreate(ctx context.Context, env *Env, input NamespaceCreateInput) (out *NamespaceCreateOutput, err error) {
	done, err := env.begin("namespace_create")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	name, created, err := env.Store.RegisterNamespace(ctx, input.Namespace)
	if err != nil {
		return nil, err
	}
	return &NamespaceCreateOutput{Namespace: name, Created: created}, nil
}

// NamespaceRenameInput contains parameters for the NamespaceRename operation.
type NamespaceRenameInput struct {
	OldNamespace string
	NewNamespace string

	// MigrateScratchpads defaults to true
	MigrateScratchpads *bool
}

// NamespaceRenameOutput contains the result of the NamespaceRename operation.
type NamespaceRenameOutput struct {
	Namespace     string `json:"namespace"`
	MigratedCount int    `json:"migrated_count"`
}

// NamespaceRename renames a namespace, moving its pads and embeddings along.
func NamespaceRename(ctx context.Context, env *Env, input NamespaceRenameInput) (out *NamespaceRenameOutput, err error) {
	done, err := env.begin("namespace_rename")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	migrate := input.MigrateScratchpads == nil || *input.MigrateScratchpads
	name, migrated, err := env.Store.RenameNamespace(ctx, input.OldNamespace, input.NewNamespace, migrate)
	if err != nil {
		return nil, err
	}
	return &NamespaceRenameOutput{Namespace: name, MigratedCount: migrated}, nil
}

// NamespaceDeleteInput contains parameters for the NamespaceDelete operation.
type NamespaceDeleteInput struct {
	Namespace         string
	DeleteScratchpads bool
}

// NamespaceDeleteOutput contains the result of the NamespaceDelete operation.
type NamespaceDeleteOutput struct {
	Deleted            bool `json:"deleted"`
	RemovedScratchpads int  `json:"removed_scratchpads"`
}

// NamespaceDelete unregisters a namespace. Pads still in it block the delete
// unless DeleteScratchpads removes them too.
func NamespaceDelete(ctx context.Context, env *Env, input NamespaceDeleteInput) (out *NamespaceDeleteOutput, err error) {
	done, err := env.begin("namespace_delete")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	deleted, removed, err := env.Store.DeleteNamespace(ctx, input.Namespace, input.DeleteScratchpads)
	if err != nil {
		return nil, err
	}
	return &NamespaceDeleteOutput{Deleted: deleted, RemovedScratchpads: removed}, nil
}
