package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/podforge/podforge/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueEpisodeProcess schedules the full generation pipeline for an
// episode and returns the task id. The episode id doubles as the task id so
// re-submitting the same episode dedupes instead of queuing twice.
func (c *Client) EnqueueEpisodeProcess(payload EpisodeProcessPayload) (string, error) {
	return c.enqueue(TypeEpisodeProcess, payload,
		asynq.MaxRetry(2),
		asynq.Timeout(time.Hour),
		asynq.TaskID(payload.EpisodeID),
	)
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}
