package vectorstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/models"
)

type Chunk struct {
	ID         uuid.UUID
	EpisodeID  uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
	Metadata   map[string]interface{}
}

type SearchOptions struct {
	EpisodeID uuid.UUID
	TopK      int
	MinScore  float64
}

type SearchResult struct {
	ChunkID    uuid.UUID              `json:"chunk_id"`
	EpisodeID  uuid.UUID              `json:"episode_id"`
	Content    string                 `json:"content"`
	Score      float64                `json:"score"`
	ChunkIndex int                    `json:"chunk_index"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// VectorStore is the retrieval index: append/lookup-only, keyed by episode id,
// safe across concurrently processed episodes.
type VectorStore interface {
	// Replace deletes any existing chunks for the episode and inserts the
	// given set, so re-running a pipeline overwrites rather than appends.
	Replace(ctx context.Context, episodeID uuid.UUID, chunks []Chunk) error
	// ByEpisode returns up to limit chunks for the episode ordered by chunk
	// index.
	ByEpisode(ctx context.Context, episodeID uuid.UUID, limit int) ([]models.ContentChunk, error)
	SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	DeleteByEpisode(ctx context.Context, episodeID uuid.UUID) error
}
