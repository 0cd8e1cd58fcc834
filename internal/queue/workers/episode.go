package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/pipeline"
	"github.com/podforge/podforge/internal/queue"
)

type EpisodeWorker struct {
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

func NewEpisodeWorker(orch *pipeline.Orchestrator, logger *slog.Logger) *EpisodeWorker {
	return &EpisodeWorker{orchestrator: orch, logger: logger}
}

func (w *EpisodeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EpisodeProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	episodeID, err := uuid.Parse(payload.EpisodeID)
	if err != nil {
		return fmt.Errorf("parse episode ID: %w", err)
	}

	jobID, _ := asynq.GetTaskID(ctx)
	w.logger.Info("processing episode task", "episode_id", episodeID, "job_id", jobID)

	result, err := w.orchestrator.Run(ctx, episodeID, jobID, payload.GenerateCover)
	if err != nil {
		// Resource pressure is worth retrying later; other fatal failures
		// already marked the episode FAILED and retrying will not help.
		if fault.KindOf(err) == fault.KindResource {
			return fmt.Errorf("episode %s deferred: %w", episodeID, err)
		}
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	w.logger.Info("episode task complete",
		"episode_id", episodeID,
		"duration_seconds", result.DurationSeconds,
		"word_count", result.WordCount)
	return nil
}
