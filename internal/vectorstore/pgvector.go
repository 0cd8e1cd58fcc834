package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/podforge/podforge/internal/models"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Replace(ctx context.Context, episodeID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM content_chunks WHERE episode_id = $1", episodeID); err != nil {
		return fmt.Errorf("clear existing chunks: %w", err)
	}

	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		embedding := pgvector.NewVector(c.Embedding)

		_, err := tx.Exec(ctx,
			`INSERT INTO content_chunks (id, episode_id, chunk_index, content, embedding, token_count, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, episodeID, c.ChunkIndex, c.Content, embedding, c.TokenCount, c.Metadata,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) ByEpisode(ctx context.Context, episodeID uuid.UUID, limit int) ([]models.ContentChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, episode_id, chunk_index, content, token_count, metadata, created_at
		 FROM content_chunks
		 WHERE episode_id = $1
		 ORDER BY chunk_index
		 LIMIT $2`,
		episodeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query episode chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.ContentChunk
	for rows.Next() {
		var c models.ContentChunk
		if err := rows.Scan(&c.ID, &c.EpisodeID, &c.ChunkIndex, &c.Content, &c.TokenCount, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	embedding := pgvector.NewVector(query)

	rows, err := s.db.Query(ctx,
		`SELECT id, episode_id, content, chunk_index, metadata,
		        1 - (embedding <=> $1) AS score
		 FROM content_chunks
		 WHERE episode_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		embedding, opts.EpisodeID, opts.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.EpisodeID, &r.Content, &r.ChunkIndex, &r.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if opts.MinScore > 0 && r.Score < opts.MinScore {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PgVectorStore) DeleteByEpisode(ctx context.Context, episodeID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM content_chunks WHERE episode_id = $1", episodeID)
	return err
}
