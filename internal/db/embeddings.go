package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/hpungsan/scratchpad/internal/errors"
)

// metaDimensionKey holds the fixed embedding width once the first vector is stored.
const metaDimensionKey = "embedding_dimension"

// EmbeddingRow is one indexed document. CellID is empty for the pad-level document.
type EmbeddingRow struct {
	TenantID    string
	ScratchID   string
	CellID      string
	CellIndex   int
	Namespace   *string
	Tags        []string
	Title       *string
	Description *string
	Summary     *string
	Snippet     string
	Vector      []float32
	UpdatedAt   int64
}

const embeddingColumns = `
	tenant_id, scratch_id, cell_id, cell_index, namespace, tags_json,
	title, description, summary, snippet, vector, updated_at`

// InsertEmbedding stores one row.
func InsertEmbedding(ctx context.Context, q Querier, row *EmbeddingRow) error {
	tagsJSON, err := encodeStrings(row.Tags)
	if err != nil {
		return errors.NewInternal(err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (`+embeddingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.TenantID, row.ScratchID, row.CellID, row.CellIndex,
		toNullString(row.Namespace), tagsJSON,
		toNullString(row.Title), toNullString(row.Description), toNullString(row.Summary),
		row.Snippet, EncodeVector(row.Vector), row.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteEmbeddings removes every row for one pad and returns the count removed.
func DeleteEmbeddings(ctx context.Context, q Querier, tenantID, scratchID string) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM embeddings WHERE tenant_id = ? AND scratch_id = ?`,
		tenantID, scratchID,
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ListEmbeddings returns a tenant's rows, or one pad's rows when scratchID is non-empty.
func ListEmbeddings(ctx context.Context, q Querier, tenantID, scratchID string) ([]EmbeddingRow, error) {
	query := `SELECT ` + embeddingColumns + ` FROM embeddings WHERE tenant_id = ?`
	args := []any{tenantID}
	if scratchID != "" {
		query += ` AND scratch_id = ?`
		args = append(args, scratchID)
	}
	query += ` ORDER BY scratch_id, cell_index`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var (
			row                             EmbeddingRow
			namespace, title, desc, summary sql.NullString
			tagsJSON                        string
			blob                            []byte
		)
		err := rows.Scan(
			&row.TenantID, &row.ScratchID, &row.CellID, &row.CellIndex, &namespace, &tagsJSON,
			&title, &desc, &summary, &row.Snippet, &blob, &row.UpdatedAt,
		)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		row.Namespace = fromNullString(namespace)
		row.Title = fromNullString(title)
		row.Description = fromNullString(desc)
		row.Summary = fromNullString(summary)
		if row.Tags, err = decodeStrings(tagsJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		if row.Vector, err = DecodeVector(blob); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// RenameEmbeddingNamespace rewrites the namespace column for a tenant.
func RenameEmbeddingNamespace(ctx context.Context, q Querier, tenantID, from, to string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE embeddings SET namespace = ? WHERE tenant_id = ? AND namespace = ?`,
		to, tenantID, from,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// EmbeddingDimension returns the stored vector width, or 0 before the first write.
func EmbeddingDimension(ctx context.Context, q Querier) (int, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaDimensionKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	dim, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInternal(fmt.Errorf("corrupt embedding dimension %q", raw))
	}
	return dim, nil
}

// SetEmbeddingDimension records the vector width. It is written once.
func SetEmbeddingDimension(ctx context.Context, q Querier, dim int) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO store_meta (key, value) VALUES (?, ?)`,
		metaDimensionKey, strconv.Itoa(dim),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// EncodeVector packs v as little-endian float32.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
