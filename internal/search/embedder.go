// Package search builds embedding documents for pads, keeps the vector
// index in step with pad writes, and answers semantic queries.
package search

import (
	"context"
	"crypto/sha256"
	"strings"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

// Embedder turns texts into vectors of one fixed width.
type Embedder interface {
	// Name identifies the backend in search responses.
	Name() string

	// Dimension is the vector width, or 0 until the first Embed call reveals it.
	Dimension() int

	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HashDimension is the width of HashEmbedder vectors.
const HashDimension = 64

// HashEmbedder derives a deterministic vector from the SHA-256 of each text.
// Identical texts map to identical vectors; nothing else is meaningful.
// It exists for tests and offline use.
type HashEmbedder struct {
	name string
}

// NewHashEmbedder returns a hashing embedder reporting name.
func NewHashEmbedder(name string) *HashEmbedder {
	if name == "" {
		name = "debug-hash"
	}
	return &HashEmbedder{name: name}
}

func (h *HashEmbedder) Name() string   { return h.name }
func (h *HashEmbedder) Dimension() int { return HashDimension }

// Embed maps each digest byte to [-1, 1], cycling through the 32-byte digest.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		digest := sha256.Sum256([]byte(text))
		vec := make([]float32, HashDimension)
		for j := range vec {
			vec[j] = float32(digest[j%len(digest)])/127.5 - 1
		}
		out[i] = vec
	}
	return out, nil
}

// NewEmbedder selects a backend from the configured model name:
// "debug*" is the hashing embedder, "openai:<model>" calls the OpenAI API.
func NewEmbedder(model string, batchSize int) (Embedder, error) {
	model = strings.TrimSpace(model)
	switch {
	case strings.HasPrefix(strings.ToLower(model), "debug"):
		return NewHashEmbedder(model), nil
	case strings.HasPrefix(model, "openai:"):
		return NewOpenAIEmbedder(strings.TrimPrefix(model, "openai:"), batchSize)
	default:
		return nil, scerrors.NewConfig("unsupported embedding model").WithDetail("embedding_model", model)
	}
}
