package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/storage"
)

// Limit bounds for Search.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Index is the slice of the storage engine the service needs.
type Index interface {
	ReplaceEmbeddings(ctx context.Context, scratchID string, records []storage.EmbeddingRecord, dimension int) error
	DeleteEmbeddings(ctx context.Context, scratchID string) error
	SearchEmbeddings(ctx context.Context, query []float32, limit int, namespaces, tags []string) ([]storage.EmbeddingHit, error)
}

// Hit is one search result.
type Hit struct {
	ScratchID string   `json:"scratch_id"`
	CellID    *string  `json:"cell_id"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
	Score     float64  `json:"score"`
	Snippet   string   `json:"snippet"`
}

// Result is the payload of a search.
type Result struct {
	Hits     []Hit  `json:"hits"`
	Embedder string `json:"embedder"`
}

// Service keeps the embedding index in step with pad writes. The backend is
// created on first use; concurrent first callers share one construction.
type Service struct {
	index   Index
	enabled bool
	factory func() (Embedder, error)
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	backend Embedder
}

// NewService returns a service over index. When enabled is false every
// indexing call is a no-op and Search fails with CONFIG_ERROR.
func NewService(index Index, enabled bool, factory func() (Embedder, error), logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, enabled: enabled, factory: factory, logger: logger}
}

// Enabled reports whether semantic search is on.
func (s *Service) Enabled() bool { return s.enabled }

func (s *Service) embedder() (Embedder, error) {
	s.mu.Lock()
	backend := s.backend
	s.mu.Unlock()
	if backend != nil {
		return backend, nil
	}

	v, err, _ := s.group.Do("backend", func() (any, error) {
		s.mu.Lock()
		if s.backend != nil {
			defer s.mu.Unlock()
			return s.backend, nil
		}
		s.mu.Unlock()

		b, err := s.factory()
		if err != nil {
			return nil, err
		}
		s.logger.Info("semantic search backend loaded", "embedder", b.Name(), "dimension", b.Dimension())
		s.mu.Lock()
		s.backend = b
		s.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Embedder), nil
}

// ReindexPad replaces the pad's vectors with fresh embeddings of its documents.
func (s *Service) ReindexPad(ctx context.Context, pad *notebook.Scratchpad) error {
	if !s.enabled {
		return nil
	}
	backend, err := s.embedder()
	if err != nil {
		return err
	}
	docs := BuildDocuments(pad)
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text
	}
	vectors, err := backend.Embed(ctx, texts)
	if err != nil {
		return scerrors.NewInternal(err)
	}
	if len(vectors) != len(docs) {
		return scerrors.NewConfig("embedder returned the wrong number of vectors").
			WithDetail("expected", len(docs)).
			WithDetail("provided", len(vectors))
	}

	records := make([]storage.EmbeddingRecord, len(docs))
	for i := range docs {
		records[i] = docs[i].Record
		records[i].Vector = vectors[i]
	}
	dimension := backend.Dimension()
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	return s.index.ReplaceEmbeddings(ctx, pad.ID, records, dimension)
}

// DeletePadEmbeddings drops every vector of the pad.
func (s *Service) DeletePadEmbeddings(ctx context.Context, scratchID string) error {
	if !s.enabled {
		return nil
	}
	return s.index.DeleteEmbeddings(ctx, scratchID)
}

// Search embeds query and returns the nearest documents. limit is clamped to
// [1, MaxLimit]; blank filter values are ignored.
func (s *Service) Search(ctx context.Context, query string, namespaces, tags []string, limit int) (*Result, error) {
	if !s.enabled {
		return nil, scerrors.NewConfig("semantic search is disabled")
	}
	backend, err := s.embedder()
	if err != nil {
		return nil, err
	}
	limit = max(1, min(limit, MaxLimit))

	vectors, err := backend.Embed(ctx, []string{query})
	if err != nil {
		return nil, scerrors.NewInternal(err)
	}
	if len(vectors) != 1 {
		return nil, scerrors.NewConfig("embedder returned no query vector")
	}

	hits, err := s.index.SearchEmbeddings(ctx, vectors[0], limit, trimAll(namespaces), trimAll(tags))
	if err != nil {
		return nil, err
	}
	out := &Result{Hits: make([]Hit, 0, len(hits)), Embedder: backend.Name()}
	for _, h := range hits {
		hit := Hit{
			ScratchID: h.ScratchID,
			Namespace: h.Namespace,
			Tags:      h.Tags,
			Score:     max(0, min(1, 1-h.Distance)),
			Snippet:   h.Snippet,
		}
		if h.CellID != "" {
			id := h.CellID
			hit.CellID = &id
		}
		if hit.Tags == nil {
			hit.Tags = []string{}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
