package episode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podforge/podforge/internal/models"
)

// Store persists episodes and their generated artifacts. Status/progress
// writes during a run go through SetStatus; callers treat them as
// best-effort.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const episodeColumns = `id, user_id, title, description, source_type, source_url, source_content,
	language, personas, script, transcript, audio_url, cover_url, duration_seconds, word_count,
	status, progress, status_message, error_message, job_id, created_at, updated_at, completed_at`

func (s *Store) Create(ctx context.Context, ep *models.Episode) error {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	if ep.Language == "" {
		ep.Language = "en"
	}
	ep.Status = models.StatusPending

	personas, err := json.Marshal(ep.Personas)
	if err != nil {
		return fmt.Errorf("marshal personas: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO episodes (id, user_id, title, description, source_type, source_url, source_content, language, personas, status, progress)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)`,
		ep.ID, ep.UserID, ep.Title, ep.Description, ep.SourceType, nullIfEmpty(ep.SourceURL),
		nullIfEmpty(ep.SourceContent), ep.Language, personas, ep.Status,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	row := s.db.QueryRow(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = $1`, id)
	return scanEpisode(row)
}

func (s *Store) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Episode, error) {
	row := s.db.QueryRow(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = $1 AND user_id = $2`, id, userID)
	return scanEpisode(row)
}

func scanEpisode(row pgx.Row) (*models.Episode, error) {
	var ep models.Episode
	var personas []byte
	var sourceURL, sourceContent, description, script, transcript, statusMessage, errorMessage, jobID *string

	err := row.Scan(
		&ep.ID, &ep.UserID, &ep.Title, &description, &ep.SourceType, &sourceURL, &sourceContent,
		&ep.Language, &personas, &script, &transcript, &ep.AudioURL, &ep.CoverURL,
		&ep.DurationSeconds, &ep.WordCount, &ep.Status, &ep.Progress, &statusMessage,
		&errorMessage, &jobID, &ep.CreatedAt, &ep.UpdatedAt, &ep.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan episode: %w", err)
	}

	ep.Description = deref(description)
	ep.SourceURL = deref(sourceURL)
	ep.SourceContent = deref(sourceContent)
	ep.Script = deref(script)
	ep.Transcript = deref(transcript)
	ep.StatusMessage = deref(statusMessage)
	ep.ErrorMessage = deref(errorMessage)
	ep.JobID = deref(jobID)

	if len(personas) > 0 {
		if err := json.Unmarshal(personas, &ep.Personas); err != nil {
			return nil, fmt.Errorf("unmarshal personas: %w", err)
		}
	}
	return &ep, nil
}

// List returns one page of the user's episodes, newest first, optionally
// filtered by status. The second return is the total matching count.
func (s *Store) List(ctx context.Context, userID uuid.UUID, status models.EpisodeStatus, page, perPage int) ([]*models.Episode, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM episodes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count episodes: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM episodes %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		episodeColumns, where, perPage, (page-1)*perPage)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*models.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, 0, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, total, rows.Err()
}

// Delete removes the user's episode. Chunk rows cascade via the schema.
func (s *Store) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM episodes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetStatus writes the (status, progress, message, error) tuple. completed_at
// is stamped when the run reaches a completed state.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status models.EpisodeStatus, progress int, message, errMsg string) error {
	var completedAt *time.Time
	if status == models.StatusCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}

	_, err := s.db.Exec(ctx,
		`UPDATE episodes
		 SET status = $2, progress = $3, status_message = $4,
		     error_message = CASE WHEN $5 <> '' THEN $5 ELSE error_message END,
		     completed_at = COALESCE($6, completed_at),
		     updated_at = now()
		 WHERE id = $1`,
		id, status, progress, message, errMsg, completedAt,
	)
	if err != nil {
		return fmt.Errorf("update episode status: %w", err)
	}
	return nil
}

func (s *Store) SetJobID(ctx context.Context, id uuid.UUID, jobID string) error {
	_, err := s.db.Exec(ctx, `UPDATE episodes SET job_id = $2, updated_at = now() WHERE id = $1`, id, jobID)
	if err != nil {
		return fmt.Errorf("update job id: %w", err)
	}
	return nil
}

func (s *Store) SaveScript(ctx context.Context, id uuid.UUID, script string, wordCount int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE episodes SET script = $2, word_count = $3, updated_at = now() WHERE id = $1`,
		id, script, wordCount,
	)
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

func (s *Store) SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE episodes SET transcript = $2, updated_at = now() WHERE id = $1`,
		id, transcript,
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *Store) SetAudio(ctx context.Context, id uuid.UUID, url string, durationSeconds float64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE episodes SET audio_url = $2, duration_seconds = $3, updated_at = now() WHERE id = $1`,
		id, url, durationSeconds,
	)
	if err != nil {
		return fmt.Errorf("save audio: %w", err)
	}
	return nil
}

func (s *Store) SetCover(ctx context.Context, id uuid.UUID, url string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE episodes SET cover_url = $2, updated_at = now() WHERE id = $1`,
		id, url,
	)
	if err != nil {
		return fmt.Errorf("save cover: %w", err)
	}
	return nil
}

// MarkAbandonedBefore flags episodes stuck in processing since before the
// cutoff as failed. Returns the number of episodes flagged.
func (s *Store) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE episodes
		 SET status = $1, progress = 0,
		     status_message = 'Processing abandoned',
		     error_message = 'job abandoned: no progress past the processing timeout',
		     updated_at = now()
		 WHERE status = $2 AND updated_at < $3`,
		models.StatusFailed, models.StatusProcessing, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned episodes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
