package storage

import (
	"context"
	"database/sql"

	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
)

// Snapshot is a before-image of one pad: its row and its embedding rows.
// Restoring it puts both tables back exactly as captured.
type Snapshot struct {
	TenantID   string
	ScratchID  string
	row        *db.ScratchpadRow
	embeddings []db.EmbeddingRow
}

// CaptureSnapshot copies a pad's current state. It returns nil when the pad does not exist.
func (s *Storage) CaptureSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureSnapshot(ctx, s.tenant, id)
}

func (s *Storage) captureSnapshot(ctx context.Context, tenant, id string) (*Snapshot, error) {
	row, err := db.GetScratchpad(ctx, s.db, tenant, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	embeddings, err := db.ListEmbeddings(ctx, s.db, tenant, id)
	if err != nil {
		return nil, err
	}
	return &Snapshot{TenantID: tenant, ScratchID: id, row: row, embeddings: embeddings}, nil
}

// RestoreSnapshot rewrites the pad row and its embeddings from snap in one transaction.
func (s *Storage) RestoreSnapshot(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreSnapshot(ctx, snap)
}

func (s *Storage) restoreSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.row == nil {
		return errors.NewConfig("snapshot missing scratch_id")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.ReplaceScratchpad(ctx, tx, snap.row); err != nil {
			return err
		}
		if _, err := db.DeleteEmbeddings(ctx, tx, snap.TenantID, snap.ScratchID); err != nil {
			return err
		}
		for i := range snap.embeddings {
			if err := db.InsertEmbedding(ctx, tx, &snap.embeddings[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
