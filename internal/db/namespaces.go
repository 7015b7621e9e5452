package db

import (
	"context"

	"github.com/hpungsan/scratchpad/internal/errors"
)

// NamespaceCount is a namespace with the number of pads referencing it.
type NamespaceCount struct {
	Namespace string
	Count     int
}

// InsertNamespace registers a namespace row and reports whether it was new.
func InsertNamespace(ctx context.Context, q Querier, tenantID, namespace string, at int64) (bool, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO namespaces (tenant_id, namespace, created_at) VALUES (?, ?, ?)`,
		tenantID, namespace, at,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// NamespaceRegistered reports whether an explicit registry row exists.
func NamespaceRegistered(ctx context.Context, q Querier, tenantID, namespace string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM namespaces WHERE tenant_id = ? AND namespace = ?)`,
		tenantID, namespace,
	).Scan(&exists)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return exists == 1, nil
}

// DeleteNamespace removes the registry row and reports whether one existed.
func DeleteNamespace(ctx context.Context, q Querier, tenantID, namespace string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM namespaces WHERE tenant_id = ? AND namespace = ?`,
		tenantID, namespace,
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

// ListNamespaces returns the union of registered namespaces and namespaces
// referenced by pads, each with its live pad count, sorted by name.
func ListNamespaces(ctx context.Context, q Querier, tenantID string) ([]NamespaceCount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, COALESCE(SUM(pads), 0) FROM (
			SELECT namespace AS name, 0 AS pads FROM namespaces WHERE tenant_id = ?
			UNION ALL
			SELECT namespace AS name, 1 AS pads FROM scratchpads
			WHERE tenant_id = ? AND namespace IS NOT NULL AND namespace != ''
		)
		GROUP BY name
		ORDER BY name`, tenantID, tenantID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []NamespaceCount
	for rows.Next() {
		var nc NamespaceCount
		if err := rows.Scan(&nc.Namespace, &nc.Count); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// CountNamespacePads returns how many pads reference namespace.
func CountNamespacePads(ctx context.Context, q Querier, tenantID, namespace string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scratchpads WHERE tenant_id = ? AND namespace = ?`,
		tenantID, namespace,
	).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}
