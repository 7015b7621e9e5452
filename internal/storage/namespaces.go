package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
)

// NamespaceInfo is one entry of ListNamespaces.
type NamespaceInfo struct {
	Namespace       string `json:"namespace"`
	ScratchpadCount int    `json:"scratchpad_count"`
}

// RegisterNamespace records name for the active tenant. It is idempotent and
// reports whether a registry row was created.
func (s *Storage) RegisterNamespace(ctx context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, err := notebook.NormalizeNamespace(name)
	if err != nil {
		return "", false, err
	}
	created, err := db.InsertNamespace(ctx, s.db, s.tenant, ns, s.timestamp())
	if err != nil {
		return "", false, err
	}
	return ns, created, nil
}

// ListNamespaces returns registered and pad-referenced namespaces with live counts.
func (s *Storage) ListNamespaces(ctx context.Context) ([]NamespaceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := db.ListNamespaces(ctx, s.db, s.tenant)
	if err != nil {
		return nil, err
	}
	out := make([]NamespaceInfo, len(rows))
	for i, r := range rows {
		out[i] = NamespaceInfo{Namespace: r.Namespace, ScratchpadCount: r.Count}
	}
	return out, nil
}

func (s *Storage) namespaceExists(ctx context.Context, q db.Querier, ns string) (bool, error) {
	registered, err := db.NamespaceRegistered(ctx, q, s.tenant, ns)
	if err != nil || registered {
		return registered, err
	}
	pads, err := db.CountNamespacePads(ctx, q, s.tenant, ns)
	return pads > 0, err
}

// RenameNamespace moves every pad in oldName to newName, rewriting their
// embedding rows too, then swaps the registry row. It returns the new name
// and the number of pads migrated.
func (s *Storage) RenameNamespace(ctx context.Context, oldName, newName string, migrate bool) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, err := notebook.NormalizeNamespace(oldName)
	if err != nil {
		return "", 0, err
	}
	target, err := notebook.NormalizeNamespace(newName)
	if err != nil {
		return "", 0, err
	}
	if source == target {
		if _, err := db.InsertNamespace(ctx, s.db, s.tenant, target, s.timestamp()); err != nil {
			return "", 0, err
		}
		return target, 0, nil
	}

	exists, err := s.namespaceExists(ctx, s.db, source)
	if err != nil {
		return "", 0, err
	}
	if !exists {
		return "", 0, errors.NewNotFoundf("namespace '%s' not found", source).WithDetail("namespace", source)
	}
	if exists, err = s.namespaceExists(ctx, s.db, target); err != nil {
		return "", 0, err
	} else if exists {
		return "", 0, errors.NewValidation(fmt.Sprintf("namespace '%s' already exists", target)).
			WithDetail("namespace", target)
	}

	rows, err := db.ListScratchpadsByNamespace(ctx, s.db, s.tenant, source)
	if err != nil {
		return "", 0, err
	}
	if len(rows) > 0 && !migrate {
		return "", 0, errors.NewValidation(fmt.Sprintf(
			"namespace '%s' has %d scratchpad(s); set migrate_scratchpads=true to rename", source, len(rows))).
			WithDetail("scratchpad_count", len(rows))
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range rows {
			pad, err := decodePad(&rows[i])
			if err != nil {
				return err
			}
			pad.SetNamespace(target)
			if err := s.writePad(ctx, tx, pad, &rows[i], false); err != nil {
				return err
			}
		}
		if err := db.RenameEmbeddingNamespace(ctx, tx, s.tenant, source, target); err != nil {
			return err
		}
		if _, err := db.DeleteNamespace(ctx, tx, s.tenant, source); err != nil {
			return err
		}
		_, err := db.InsertNamespace(ctx, tx, s.tenant, target, s.timestamp())
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return target, len(rows), nil
}

// DeleteNamespace removes the registry row. Pads referencing the namespace
// block deletion unless cascade is set, in which case they are deleted with
// their embeddings. A namespace with no row and no pads yields (false, 0).
func (s *Storage) DeleteNamespace(ctx context.Context, name string, cascade bool) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, err := notebook.NormalizeNamespace(name)
	if err != nil {
		return false, 0, err
	}
	rows, err := db.ListScratchpadsByNamespace(ctx, s.db, s.tenant, ns)
	if err != nil {
		return false, 0, err
	}
	if len(rows) > 0 && !cascade {
		return false, 0, errors.NewValidation(fmt.Sprintf(
			"namespace '%s' cannot be deleted while %d scratchpad(s) reference it", ns, len(rows))).
			WithDetail("scratchpad_count", len(rows))
	}

	removed := 0
	for i := range rows {
		deleted, err := s.deletePad(ctx, s.tenant, rows[i].ScratchID)
		if err != nil {
			return false, removed, err
		}
		if deleted {
			removed++
		}
	}
	deleted, err := db.DeleteNamespace(ctx, s.db, s.tenant, ns)
	if err != nil {
		return false, removed, err
	}
	return deleted, removed, nil
}
