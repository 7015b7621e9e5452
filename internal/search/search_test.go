package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/db"
	scerrors "github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/storage"
)

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder("")
	assert.Equal(t, "debug-hash", h.Name())
	assert.Equal(t, HashDimension, h.Dimension())

	vecs, err := h.Embed(context.Background(), []string{"alpha", "alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], HashDimension)
	assert.Equal(t, vecs[0], vecs[1])
	assert.NotEqual(t, vecs[0], vecs[2])
	for _, v := range vecs[0] {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder("debug-hash", 0)
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	_, err = NewEmbedder("sentence-transformers/all-MiniLM", 0)
	assert.True(t, scerrors.Is(err, scerrors.ErrConfig), "got %v", err)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "Title body", Snippet(" body ", "Title", ""))
	assert.Equal(t, "", Snippet(""))

	long := Snippet(strings.Repeat("é", 300))
	assert.Equal(t, SnippetLimit, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestBuildDocuments(t *testing.T) {
	pad := &notebook.Scratchpad{
		ID: "pad",
		Metadata: map[string]any{
			"title":     "Plan",
			"namespace": "team",
			"tags":      []string{"p"},
		},
		Cells: []notebook.Cell{
			{CellID: "c0", Index: 0, Language: "md", Content: " first ", Metadata: map[string]any{"tags": []string{"c"}}},
			{CellID: "c1", Index: 1, Language: "txt", Content: "second"},
		},
	}

	docs := BuildDocuments(pad)
	require.Len(t, docs, 3)

	assert.Equal(t, "Plan\nfirst\nsecond", docs[0].Text)
	assert.Equal(t, -1, docs[0].Record.CellIndex)
	assert.Empty(t, docs[0].Record.CellID)
	assert.Equal(t, []string{"p"}, docs[0].Record.Tags)
	assert.Equal(t, "team", docs[0].Record.Namespace)

	assert.Equal(t, "first", docs[1].Text)
	assert.Equal(t, "c0", docs[1].Record.CellID)
	assert.Equal(t, []string{"p", "c"}, docs[1].Record.Tags)
	assert.Equal(t, "Plan first", docs[1].Record.Snippet)
	assert.Equal(t, 1, docs[2].Record.CellIndex)
}

func newTestIndex(t *testing.T) *storage.Storage {
	t.Helper()
	conn, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	s, err := storage.New(context.Background(), conn, config.DefaultConfig())
	require.NoError(t, err)
	return s
}

func hashFactory() (Embedder, error) { return NewHashEmbedder("debug-hash"), nil }

func TestService_ReindexAndSearch(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	svc := NewService(index, true, hashFactory, nil)

	pad := &notebook.Scratchpad{
		ID:       "pad",
		Metadata: map[string]any{"namespace": "team"},
		Cells: []notebook.Cell{
			{CellID: "c0", Index: 0, Language: "txt", Content: "needle"},
			{CellID: "c1", Index: 1, Language: "txt", Content: "haystack"},
		},
	}
	require.NoError(t, svc.ReindexPad(ctx, pad))

	res, err := svc.Search(ctx, "needle", nil, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "debug-hash", res.Embedder)
	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, "pad", hit.ScratchID)
	require.NotNil(t, hit.CellID)
	assert.Equal(t, "c0", *hit.CellID)
	assert.InDelta(t, 1.0, hit.Score, 1e-6)
	assert.Equal(t, "team", hit.Namespace)

	res, err = svc.Search(ctx, "needle", []string{"other"}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	require.NoError(t, svc.DeletePadEmbeddings(ctx, "pad"))
	res, err = svc.Search(ctx, "needle", nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestService_Disabled(t *testing.T) {
	svc := NewService(newTestIndex(t), false, hashFactory, nil)
	ctx := context.Background()

	assert.NoError(t, svc.ReindexPad(ctx, &notebook.Scratchpad{ID: "pad"}))
	assert.NoError(t, svc.DeletePadEmbeddings(ctx, "pad"))

	_, err := svc.Search(ctx, "q", nil, nil, 5)
	assert.True(t, scerrors.Is(err, scerrors.ErrConfig), "got %v", err)
}

func TestService_LoadsBackendOnce(t *testing.T) {
	var calls atomic.Int32
	svc := NewService(newTestIndex(t), true, func() (Embedder, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return NewHashEmbedder(""), nil
	}, nil)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = svc.Search(context.Background(), "q", nil, nil, 1)
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, int32(1), calls.Load())
}

func embeddingResponse(n, dim int) map[string]any {
	data := make([]map[string]any, n)
	for i := range data {
		vec := make([]float64, dim)
		vec[i%dim] = 1
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
	}
	return map[string]any{
		"object": "list",
		"data":   data,
		"model":  "test-model",
		"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
	}
}

func TestOpenAIEmbedder_BatchesAndRetries(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
			return
		}
		var body struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(embeddingResponse(len(body.Input), 4))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-model", 2,
		option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	e.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	assert.Equal(t, 0, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 4, e.Dimension())
	assert.Equal(t, "openai:test-model", e.Name())
	// One 429, then two batches of at most two texts.
	assert.Equal(t, int32(3), requests.Load())
}

func TestOpenAIEmbedder_PermanentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("", 0, option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimension())

	_, err = e.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}
