// Package jobs tracks live pipeline progress in Redis so the API can serve
// polling clients without hitting Postgres on every request.
package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// Status is the externally visible state of a running job.
type Status struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb, ttl: defaultTTL}
}

func key(jobID string) string { return "job:" + jobID }

// Update overwrites the job's progress hash. Progress writes are
// best-effort: callers log failures and keep going.
func (t *Tracker) Update(ctx context.Context, jobID, status string, progress int, message, errMsg string) error {
	k := key(jobID)
	pipe := t.rdb.TxPipeline()
	pipe.HSet(ctx, k, map[string]interface{}{
		"status":   status,
		"progress": progress,
		"message":  message,
		"error":    errMsg,
	})
	pipe.Expire(ctx, k, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write job status: %w", err)
	}
	return nil
}

// Get returns the job's last reported state, or nil when the job is
// unknown or has expired.
func (t *Tracker) Get(ctx context.Context, jobID string) (*Status, error) {
	fields, err := t.rdb.HGetAll(ctx, key(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read job status: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	progress, _ := strconv.Atoi(fields["progress"])
	return &Status{
		JobID:    jobID,
		Status:   fields["status"],
		Progress: progress,
		Message:  fields["message"],
		Error:    fields["error"],
	}, nil
}
