package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/scratchpad/internal/errors"
)

// ScratchpadRow is one persisted pad. Derived columns (namespace, canonical
// fields, tags, cell_tags, cell_count) exist for filtering and are rewritten on
// every write; the JSON blobs are authoritative.
type ScratchpadRow struct {
	TenantID     string
	ScratchID    string
	Namespace    *string
	Title        *string
	Description  *string
	Summary      *string
	Tags         []string
	CellTags     []string
	CellCount    int
	MetadataJSON string
	CellsJSON    string
	SchemasJSON  string
	CreatedAt    int64
	UpdatedAt    int64
	LastAccessAt int64
}

// PadRef identifies a pad across tenants.
type PadRef struct {
	TenantID  string
	ScratchID string
}

const scratchpadColumns = `
	tenant_id, scratch_id, namespace, title, description, summary,
	tags_json, cell_tags_json, cell_count, metadata_json, cells_json, schemas_json,
	created_at, updated_at, last_access_at`

// ReplaceScratchpad writes row, replacing any existing row with the same key.
func ReplaceScratchpad(ctx context.Context, q Querier, row *ScratchpadRow) error {
	tagsJSON, err := encodeStrings(row.Tags)
	if err != nil {
		return errors.NewInternal(err)
	}
	cellTagsJSON, err := encodeStrings(row.CellTags)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `INSERT OR REPLACE INTO scratchpads (` + scratchpadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, query,
		row.TenantID, row.ScratchID,
		toNullString(row.Namespace), toNullString(row.Title),
		toNullString(row.Description), toNullString(row.Summary),
		tagsJSON, cellTagsJSON, row.CellCount,
		row.MetadataJSON, row.CellsJSON, row.SchemasJSON,
		row.CreatedAt, row.UpdatedAt, row.LastAccessAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetScratchpad loads one row; a missing row is NOT_FOUND.
func GetScratchpad(ctx context.Context, q Querier, tenantID, scratchID string) (*ScratchpadRow, error) {
	query := `SELECT ` + scratchpadColumns + ` FROM scratchpads WHERE tenant_id = ? AND scratch_id = ?`
	row, err := scanScratchpad(q.QueryRowContext(ctx, query, tenantID, scratchID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(scratchID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return row, nil
}

// ScratchpadExists reports whether the tenant holds a pad with scratchID.
func ScratchpadExists(ctx context.Context, q Querier, tenantID, scratchID string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM scratchpads WHERE tenant_id = ? AND scratch_id = ?)`,
		tenantID, scratchID,
	).Scan(&exists)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return exists == 1, nil
}

// TouchScratchpad refreshes last_access_at without rewriting the row.
func TouchScratchpad(ctx context.Context, q Querier, tenantID, scratchID string, at int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE scratchpads SET last_access_at = ? WHERE tenant_id = ? AND scratch_id = ?`,
		at, tenantID, scratchID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteScratchpad removes a row and reports whether one existed.
func DeleteScratchpad(ctx context.Context, q Querier, tenantID, scratchID string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM scratchpads WHERE tenant_id = ? AND scratch_id = ?`,
		tenantID, scratchID,
	)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return affected > 0, nil
}

// CountScratchpads returns the number of pads held by a tenant.
func CountScratchpads(ctx context.Context, q Querier, tenantID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scratchpads WHERE tenant_id = ?`, tenantID,
	).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// CountCells returns the total number of cells across a tenant's pads.
func CountCells(ctx context.Context, q Querier, tenantID string) (int, error) {
	var n sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT SUM(cell_count) FROM scratchpads WHERE tenant_id = ?`, tenantID,
	).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n.Int64), nil
}

// ListScratchpads returns every row for a tenant ordered by scratch_id.
func ListScratchpads(ctx context.Context, q Querier, tenantID string) ([]ScratchpadRow, error) {
	query := `SELECT ` + scratchpadColumns + ` FROM scratchpads WHERE tenant_id = ? ORDER BY scratch_id`
	rows, err := q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []ScratchpadRow
	for rows.Next() {
		row, err := scanScratchpad(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ListScratchpadsByNamespace returns a tenant's rows in one namespace, ordered by scratch_id.
func ListScratchpadsByNamespace(ctx context.Context, q Querier, tenantID, namespace string) ([]ScratchpadRow, error) {
	query := `SELECT ` + scratchpadColumns + ` FROM scratchpads
		WHERE tenant_id = ? AND namespace = ? ORDER BY scratch_id`
	rows, err := q.QueryContext(ctx, query, tenantID, namespace)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []ScratchpadRow
	for rows.Next() {
		row, err := scanScratchpad(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// LeastRecentlyUsed returns the tenant's eviction victim ordered by
// (last_access_at, created_at, scratch_id). ok is false when the tenant is empty.
func LeastRecentlyUsed(ctx context.Context, q Querier, tenantID string) (string, bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT scratch_id FROM scratchpads
		WHERE tenant_id = ?
		ORDER BY last_access_at ASC, created_at ASC, scratch_id ASC
		LIMIT 1`, tenantID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return id, true, nil
}

// StaleScratchpads lists pads in every tenant whose last access is at or before cutoff.
func StaleScratchpads(ctx context.Context, q Querier, cutoff int64) ([]PadRef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tenant_id, scratch_id FROM scratchpads
		WHERE last_access_at <= ?
		ORDER BY tenant_id, last_access_at, created_at, scratch_id`, cutoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []PadRef
	for rows.Next() {
		var ref PadRef
		if err := rows.Scan(&ref.TenantID, &ref.ScratchID); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// MoveTenant reassigns every row of one tenant to another across all tables
// and returns the moved scratch ids. Rows already present under the target win.
func MoveTenant(ctx context.Context, q Querier, from, to string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT scratch_id FROM scratchpads
		WHERE tenant_id = ?
		  AND scratch_id NOT IN (SELECT scratch_id FROM scratchpads WHERE tenant_id = ?)
		ORDER BY scratch_id`, from, to)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var moved []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		moved = append(moved, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	statements := []string{
		`UPDATE OR IGNORE scratchpads SET tenant_id = ? WHERE tenant_id = ?`,
		`UPDATE OR IGNORE embeddings SET tenant_id = ? WHERE tenant_id = ?`,
		`UPDATE OR IGNORE namespaces SET tenant_id = ? WHERE tenant_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt, to, from); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return moved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScratchpad(s rowScanner) (*ScratchpadRow, error) {
	var (
		row                             ScratchpadRow
		namespace, title, desc, summary sql.NullString
		tagsJSON, cellTagsJSON          string
	)
	err := s.Scan(
		&row.TenantID, &row.ScratchID, &namespace, &title, &desc, &summary,
		&tagsJSON, &cellTagsJSON, &row.CellCount,
		&row.MetadataJSON, &row.CellsJSON, &row.SchemasJSON,
		&row.CreatedAt, &row.UpdatedAt, &row.LastAccessAt,
	)
	if err != nil {
		return nil, err
	}
	row.Namespace = fromNullString(namespace)
	row.Title = fromNullString(title)
	row.Description = fromNullString(desc)
	row.Summary = fromNullString(summary)
	if row.Tags, err = decodeStrings(tagsJSON); err != nil {
		return nil, err
	}
	if row.CellTags, err = decodeStrings(cellTagsJSON); err != nil {
		return nil, err
	}
	return &row, nil
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
