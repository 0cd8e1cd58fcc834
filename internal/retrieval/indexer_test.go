package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/embedding"
	"github.com/podforge/podforge/internal/llm"
	"github.com/podforge/podforge/internal/models"
	"github.com/podforge/podforge/internal/vectorstore"
	"github.com/podforge/podforge/pkg/chunker"
)

func TestWindowWordsSplitsOnWindowSize(t *testing.T) {
	text := strings.Repeat("word ", 1200)
	windows := windowWords(text, 500, 5000)

	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if n := len(strings.Fields(windows[0])); n != 500 {
		t.Errorf("first window has %d words, want 500", n)
	}
	if n := len(strings.Fields(windows[2])); n != 200 {
		t.Errorf("last window has %d words, want 200", n)
	}
}

func TestWindowWordsCapsTotal(t *testing.T) {
	text := strings.Repeat("word ", 9000)
	windows := windowWords(text, 500, 5000)

	total := 0
	for _, w := range windows {
		total += len(strings.Fields(w))
	}
	if total != 5000 {
		t.Errorf("windows cover %d words, want 5000", total)
	}
}

func TestWindowWordsEmptyInput(t *testing.T) {
	if got := windowWords("", 500, 5000); got != nil {
		t.Errorf("windowWords(\"\") = %v, want nil", got)
	}
}

type fakeEmbedProvider struct {
	err error
}

func (f *fakeEmbedProvider) ChatCompletion(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not a chat provider")
}

func (f *fakeEmbedProvider) GenerateEmbedding(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(req.Input))
	for i := range req.Input {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func (f *fakeEmbedProvider) Name() string { return "fake" }

type fakeVectorStore struct {
	chunks     []models.ContentChunk
	ranked     []vectorstore.SearchResult
	searchErr  error
	byEpErr    error
	searched   bool
	searchOpts vectorstore.SearchOptions
	deleted    []uuid.UUID
}

func (f *fakeVectorStore) Replace(context.Context, uuid.UUID, []vectorstore.Chunk) error {
	return nil
}

func (f *fakeVectorStore) ByEpisode(_ context.Context, _ uuid.UUID, _ int) ([]models.ContentChunk, error) {
	return f.chunks, f.byEpErr
}

func (f *fakeVectorStore) SimilaritySearch(_ context.Context, _ []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	f.searched = true
	f.searchOpts = opts
	return f.ranked, f.searchErr
}

func (f *fakeVectorStore) DeleteByEpisode(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestIndexer(vs vectorstore.VectorStore, provider llm.Provider) *Indexer {
	return NewIndexer(
		chunker.New(chunker.DefaultOptions()),
		embedding.NewService(provider, ""),
		vs,
		slog.New(slog.DiscardHandler),
	)
}

func TestContextRanksChunksByQuery(t *testing.T) {
	vs := &fakeVectorStore{
		chunks: []models.ContentChunk{{Content: "first"}, {Content: "second"}},
		ranked: []vectorstore.SearchResult{{Content: "second"}, {Content: "first"}},
	}
	ix := newTestIndexer(vs, &fakeEmbedProvider{})

	got := ix.Context(context.Background(), uuid.New(), "some title", "raw words")
	if got != "second\n\n---\n\nfirst" {
		t.Errorf("context = %q, want similarity order", got)
	}
	if !vs.searched {
		t.Error("similarity search never ran")
	}
	if vs.searchOpts.TopK != contextJoinLimit {
		t.Errorf("search topK = %d, want %d", vs.searchOpts.TopK, contextJoinLimit)
	}
}

func TestContextWithoutQueryUsesDocumentOrder(t *testing.T) {
	vs := &fakeVectorStore{
		chunks: []models.ContentChunk{{Content: "first"}, {Content: "second"}},
	}
	ix := newTestIndexer(vs, &fakeEmbedProvider{})

	got := ix.Context(context.Background(), uuid.New(), "", "raw words")
	if got != "first\n\n---\n\nsecond" {
		t.Errorf("context = %q, want document order", got)
	}
	if vs.searched {
		t.Error("similarity search ran without a query")
	}
}

func TestContextFallsBackWhenEmbeddingFails(t *testing.T) {
	vs := &fakeVectorStore{
		chunks: []models.ContentChunk{{Content: "stored"}},
	}
	ix := newTestIndexer(vs, &fakeEmbedProvider{err: errors.New("api down")})

	got := ix.Context(context.Background(), uuid.New(), "title", "raw words")
	if got != "stored" {
		t.Errorf("context = %q, want stored chunk", got)
	}
}

func TestContextFallsBackToRawWindows(t *testing.T) {
	vs := &fakeVectorStore{byEpErr: errors.New("db down")}
	ix := newTestIndexer(vs, &fakeEmbedProvider{err: errors.New("api down")})

	got := ix.Context(context.Background(), uuid.New(), "title", "only the raw text")
	if got != "only the raw text" {
		t.Errorf("context = %q, want windowed raw content", got)
	}
}
