package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/embedding"
	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/vectorstore"
	"github.com/podforge/podforge/pkg/chunker"
)

const (
	// contextChunkLimit bounds how many stored chunks feed the script prompt.
	contextChunkLimit = 20
	// contextJoinLimit bounds how many of those chunks are actually joined.
	contextJoinLimit = 15
	// fallbackWindowWords is the window size used when no index exists.
	fallbackWindowWords = 500
	// fallbackMaxWords caps how much raw content the fallback considers.
	fallbackMaxWords = 5000
)

// Indexer chunks extracted text, embeds each chunk and overwrites the
// episode's row set in the vector store. Indexing is degradable: a failed
// index run falls back to raw-content windows at script time.
type Indexer struct {
	chunker  chunker.Chunker
	embedder *embedding.Service
	store    vectorstore.VectorStore
	logger   *slog.Logger
}

func NewIndexer(c chunker.Chunker, e *embedding.Service, vs vectorstore.VectorStore, logger *slog.Logger) *Indexer {
	return &Indexer{chunker: c, embedder: e, store: vs, logger: logger}
}

// Index replaces the episode's indexed chunks and returns how many were
// stored.
func (ix *Indexer) Index(ctx context.Context, episodeID uuid.UUID, text string) (int, error) {
	chunks := ix.chunker.Chunk(text, map[string]interface{}{"episode_id": episodeID.String()})
	if len(chunks) == 0 {
		return 0, fault.Degradablef(fault.KindIndex, "no chunks produced from source text")
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	vectors, err := ix.embedder.Embed(ctx, contents)
	if err != nil {
		return 0, fault.Degradable(fault.KindEmbedding, err)
	}

	rows := make([]vectorstore.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = vectorstore.Chunk{
			EpisodeID:  episodeID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  vectors[i],
			TokenCount: c.TokenCount,
			Metadata:   c.Metadata,
		}
	}

	if err := ix.store.Replace(ctx, episodeID, rows); err != nil {
		return 0, fault.Degradable(fault.KindIndex, err)
	}

	ix.logger.Info("indexed episode content", "episode_id", episodeID, "chunks", len(rows))
	return len(rows), nil
}

// Context assembles the retrieval context for script generation. A
// non-empty query ranks the stored chunks by similarity to it; otherwise
// they come back in document order. When the index is empty or unreachable
// the raw content is windowed instead, so a failed indexing stage never
// blocks the script.
func (ix *Indexer) Context(ctx context.Context, episodeID uuid.UUID, query, rawContent string) string {
	parts := ix.rankedChunks(ctx, episodeID, query)

	if len(parts) == 0 {
		stored, err := ix.store.ByEpisode(ctx, episodeID, contextChunkLimit)
		if err != nil {
			ix.logger.Warn("chunk retrieval failed, falling back to raw content", "episode_id", episodeID, "error", err)
		}
		for _, c := range stored {
			parts = append(parts, c.Content)
		}
	}

	if len(parts) == 0 {
		parts = windowWords(rawContent, fallbackWindowWords, fallbackMaxWords)
	}

	if len(parts) > contextJoinLimit {
		parts = parts[:contextJoinLimit]
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// rankedChunks embeds the query and pulls the closest chunks. Any failure
// returns nil so the caller falls back to document order.
func (ix *Indexer) rankedChunks(ctx context.Context, episodeID uuid.UUID, query string) []string {
	if query == "" {
		return nil
	}

	vector, err := ix.embedder.EmbedSingle(ctx, query)
	if err != nil {
		ix.logger.Warn("query embedding failed, using document order", "episode_id", episodeID, "error", err)
		return nil
	}

	results, err := ix.store.SimilaritySearch(ctx, vector, vectorstore.SearchOptions{
		EpisodeID: episodeID,
		TopK:      contextJoinLimit,
	})
	if err != nil {
		ix.logger.Warn("similarity search failed, using document order", "episode_id", episodeID, "error", err)
		return nil
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return parts
}

func windowWords(text string, window, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	var out []string
	for i := 0; i < len(words); i += window {
		end := i + window
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}
