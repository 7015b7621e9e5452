package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	scerrors "github.com/hpungsan/scratchpad/internal/errors"
)

// DefaultOpenAIModel is used for "openai:" with no model name.
const DefaultOpenAIModel = "text-embedding-3-small"

// DefaultBatchSize caps the number of texts per embeddings request.
const DefaultBatchSize = 16

// knownDimensions avoids a round trip to learn the width of common models.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint in batches and retries
// rate-limited (HTTP 429) batches with exponential backoff.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	batchSize int

	// newBackOff builds the retry policy for one batch.
	newBackOff func() backoff.BackOff

	mu        sync.Mutex
	dimension int
}

// NewOpenAIEmbedder builds an embedder for model. OPENAI_API_KEY must be set
// unless opts supply a key.
func NewOpenAIEmbedder(model string, batchSize int, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	if len(opts) == 0 && os.Getenv("OPENAI_API_KEY") == "" {
		return nil, scerrors.NewConfig("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	// Retries are ours; the client's own retry loop would double them.
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		batchSize:  batchSize,
		newBackOff: defaultBackOff,
		dimension:  knownDimensions[model],
	}, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func (e *OpenAIEmbedder) Name() string { return "openai:" + e.model }

func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		out = append(out, vectors...)
	}
	if len(out) > 0 {
		e.mu.Lock()
		if e.dimension == 0 {
			e.dimension = len(out[0])
		}
		e.mu.Unlock()
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimit(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
		}
		vectors = make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(vectors) {
				return backoff.Permanent(fmt.Errorf("embedding index %d out of range", d.Index))
			}
			vectors[d.Index] = toFloat32(d.Embedding)
		}
		return nil
	}
	err := backoff.Retry(operation, backoff.WithContext(e.newBackOff(), ctx))
	return vectors, err
}

func isRateLimit(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
