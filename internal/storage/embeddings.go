package storage

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/errors"
)

// EmbeddingRecord is one document to index for a pad. CellID is empty and
// CellIndex is -1 for the pad-level document.
type EmbeddingRecord struct {
	CellID      string
	CellIndex   int
	Namespace   string
	Tags        []string
	Title       string
	Description string
	Summary     string
	Snippet     string
	Vector      []float32
}

// EmbeddingHit is a search match with its cosine distance.
type EmbeddingHit struct {
	EmbeddingRecord
	ScratchID string
	Distance  float64
}

func dimensionMismatch(expected, provided int) error {
	return errors.NewConfig("embedding dimension mismatch").
		WithDetail("expected", expected).
		WithDetail("provided", provided)
}

// ReplaceEmbeddings swaps every vector of a pad for records in one
// transaction. The first successful write fixes the store's dimension; any
// later write of a different width is a CONFIG_ERROR. Empty records clear the pad.
func (s *Storage) ReplaceEmbeddings(ctx context.Context, scratchID string, records []EmbeddingRecord, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := db.EmbeddingDimension(ctx, s.db)
	if err != nil {
		return err
	}
	if stored != 0 && stored != dimension {
		return dimensionMismatch(stored, dimension)
	}
	for i := range records {
		if len(records[i].Vector) != dimension {
			return dimensionMismatch(dimension, len(records[i].Vector))
		}
	}

	now := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := db.DeleteEmbeddings(ctx, tx, s.tenant, scratchID); err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if stored == 0 && dimension > 0 {
			if err := db.SetEmbeddingDimension(ctx, tx, dimension); err != nil {
				return err
			}
		}
		for i := range records {
			r := &records[i]
			row := &db.EmbeddingRow{
				TenantID:    s.tenant,
				ScratchID:   scratchID,
				CellID:      r.CellID,
				CellIndex:   r.CellIndex,
				Namespace:   optional(r.Namespace),
				Tags:        r.Tags,
				Title:       optional(r.Title),
				Description: optional(r.Description),
				Summary:     optional(r.Summary),
				Snippet:     r.Snippet,
				Vector:      r.Vector,
				UpdatedAt:   now,
			}
			if err := db.InsertEmbedding(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteEmbeddings clears a pad's vectors.
func (s *Storage) DeleteEmbeddings(ctx context.Context, scratchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := db.DeleteEmbeddings(ctx, s.db, s.tenant, scratchID)
	return err
}

// EmbeddingDimension returns the fixed vector width, or 0 before the first write.
func (s *Storage) EmbeddingDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return db.EmbeddingDimension(ctx, s.db)
}

// SearchEmbeddings ranks the active tenant's vectors by cosine distance to
// query, keeps the 3*limit nearest, then applies the namespace and tag
// filters (tags match on any overlap) and truncates to limit.
func (s *Storage) SearchEmbeddings(ctx context.Context, query []float32, limit int, namespaces, tags []string) ([]EmbeddingHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	dim, err := db.EmbeddingDimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(query) != dim {
		return nil, dimensionMismatch(dim, len(query))
	}

	rows, err := db.ListEmbeddings(ctx, s.db, s.tenant, "")
	if err != nil {
		return nil, err
	}
	hits := make([]EmbeddingHit, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		hits = append(hits, EmbeddingHit{
			EmbeddingRecord: EmbeddingRecord{
				CellID:      r.CellID,
				CellIndex:   r.CellIndex,
				Namespace:   deref(r.Namespace),
				Tags:        r.Tags,
				Title:       deref(r.Title),
				Description: deref(r.Description),
				Summary:     deref(r.Summary),
				Snippet:     r.Snippet,
				Vector:      r.Vector,
			},
			ScratchID: r.ScratchID,
			Distance:  cosineDistance(query, r.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if fetch := 3 * limit; len(hits) > fetch {
		hits = hits[:fetch]
	}

	nsFilter := stringSet(namespaces)
	tagFilter := stringSet(tags)
	out := make([]EmbeddingHit, 0, limit)
	for _, hit := range hits {
		if nsFilter != nil && !nsFilter[hit.Namespace] {
			continue
		}
		if tagFilter != nil && !intersects(tagFilter, hit.Tags) {
			continue
		}
		out = append(out, hit)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// cosineDistance is 1 - cos(a, b); a zero vector is at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
