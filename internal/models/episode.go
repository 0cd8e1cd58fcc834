package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Episode is the aggregate root for a podcast generation run. Only the
// pipeline orchestrator mutates status, progress and error while a run is
// active.
type Episode struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	Title           string        `json:"title" db:"title"`
	Description     string        `json:"description,omitempty" db:"description"`
	SourceType      SourceType    `json:"source_type" db:"source_type"`
	SourceURL       string        `json:"source_url,omitempty" db:"source_url"`
	SourceContent   string        `json:"-" db:"source_content"`
	Language        string        `json:"language" db:"language"`
	Personas        []Persona     `json:"personas" db:"personas"`
	Script          string        `json:"script,omitempty" db:"script"`
	Transcript      string        `json:"transcript,omitempty" db:"transcript"`
	AudioURL        *string       `json:"audio_url" db:"audio_url"`
	CoverURL        *string       `json:"cover_url" db:"cover_url"`
	DurationSeconds float64       `json:"duration_seconds" db:"duration_seconds"`
	WordCount       int           `json:"word_count" db:"word_count"`
	Status          EpisodeStatus `json:"status" db:"status"`
	Progress        int           `json:"progress" db:"progress"`
	StatusMessage   string        `json:"status_message" db:"status_message"`
	ErrorMessage    string        `json:"error_message,omitempty" db:"error_message"`
	JobID           string        `json:"job_id,omitempty" db:"job_id"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

type EpisodeStatus string

const (
	StatusPending    EpisodeStatus = "pending"
	StatusProcessing EpisodeStatus = "processing"
	StatusCompleted  EpisodeStatus = "completed"
	StatusFailed     EpisodeStatus = "failed"
	StatusCancelled  EpisodeStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s EpisodeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (EpisodeStatus, bool) {
	switch EpisodeStatus(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return EpisodeStatus(s), true
	}
	return "", false
}

type SourceType string

const (
	SourceText    SourceType = "text"
	SourcePDF     SourceType = "pdf"
	SourceURL     SourceType = "url"
	SourceYouTube SourceType = "youtube"
)

// ParseSourceType validates a client-supplied source type string.
func ParseSourceType(s string) (SourceType, bool) {
	switch SourceType(s) {
	case SourceText, SourcePDF, SourceURL, SourceYouTube:
		return SourceType(s), true
	}
	return "", false
}

// Persona is read-only speaker configuration supplied at episode creation,
// used for both dialogue tagging and voice assignment.
type Persona struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Gender      string `json:"gender,omitempty"`
	VoiceID     string `json:"voice_id,omitempty"`
	Personality string `json:"personality,omitempty"`
}

// ContentChunk is the persisted form of a retrieval chunk. Indices are
// contiguous from 0 and the order must survive storage and retrieval.
type ContentChunk struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	EpisodeID  uuid.UUID       `json:"episode_id" db:"episode_id"`
	ChunkIndex int             `json:"chunk_index" db:"chunk_index"`
	Content    string          `json:"content" db:"content"`
	TokenCount int             `json:"token_count" db:"token_count"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// DialogueSegment is one speaker turn of a parsed script. Ephemeral: it is
// not persisted beyond the flattened script text.
type DialogueSegment struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}
