package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/auth"
	"github.com/podforge/podforge/internal/jobs"
	"github.com/podforge/podforge/internal/models"
	"github.com/podforge/podforge/internal/queue"
)

type EpisodeHandler struct {
	store   episodeStore
	queue   *queue.Client
	tracker *jobs.Tracker
	chunks  chunkDeleter
	logger  *slog.Logger
}

// episodeStore is the slice of the episode store the HTTP surface needs.
type episodeStore interface {
	Create(ctx context.Context, ep *models.Episode) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Episode, error)
	List(ctx context.Context, userID uuid.UUID, status models.EpisodeStatus, page, perPage int) ([]*models.Episode, int, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	SetJobID(ctx context.Context, id uuid.UUID, jobID string) error
}

// chunkDeleter removes an episode's rows from the retrieval index.
type chunkDeleter interface {
	DeleteByEpisode(ctx context.Context, episodeID uuid.UUID) error
}

func NewEpisodeHandler(store episodeStore, qc *queue.Client, tracker *jobs.Tracker, chunks chunkDeleter, logger *slog.Logger) *EpisodeHandler {
	return &EpisodeHandler{store: store, queue: qc, tracker: tracker, chunks: chunks, logger: logger}
}

type createEpisodeRequest struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	SourceType    string           `json:"source_type"`
	SourceURL     string           `json:"source_url"`
	SourceContent string           `json:"source_content"`
	Language      string           `json:"language"`
	Personas      []models.Persona `json:"personas"`
	GenerateCover *bool            `json:"generate_cover"`
}

// Create persists a new episode and enqueues the generation pipeline. A
// broken queue does not fail the request: the episode is created and can be
// re-enqueued later.
func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	sourceType, ok := models.ParseSourceType(req.SourceType)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source_type: " + req.SourceType})
		return
	}
	switch sourceType {
	case models.SourceText, models.SourcePDF:
		if req.SourceContent == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_content is required for " + req.SourceType + " sources"})
			return
		}
	case models.SourceURL, models.SourceYouTube:
		if req.SourceURL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_url is required for " + req.SourceType + " sources"})
			return
		}
	}
	if len(req.Personas) == 0 {
		req.Personas = []models.Persona{
			{Name: "Alex", Role: "host", Gender: "male", Personality: "curious and engaging"},
			{Name: "Jordan", Role: "co-host", Gender: "female", Personality: "knowledgeable and warm"},
		}
	}

	ep := &models.Episode{
		UserID:        auth.UserIDFromContext(r.Context()),
		Title:         req.Title,
		Description:   req.Description,
		SourceType:    sourceType,
		SourceURL:     req.SourceURL,
		SourceContent: req.SourceContent,
		Language:      req.Language,
		Personas:      req.Personas,
	}
	if err := h.store.Create(r.Context(), ep); err != nil {
		h.logger.Error("create episode failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create episode"})
		return
	}

	generateCover := req.GenerateCover == nil || *req.GenerateCover
	jobID, err := h.queue.EnqueueEpisodeProcess(queue.EpisodeProcessPayload{
		EpisodeID:     ep.ID.String(),
		GenerateCover: generateCover,
	})
	if err != nil {
		h.logger.Warn("enqueue failed, episode created without job", "episode_id", ep.ID, "error", err)
		ep.StatusMessage = "Episode created, but job queue unavailable"
	} else {
		ep.JobID = jobID
		ep.StatusMessage = "Processing started"
		if err := h.store.SetJobID(r.Context(), ep.ID, jobID); err != nil {
			h.logger.Warn("job id write failed", "episode_id", ep.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, ep)
}

func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var status models.EpisodeStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, ok := models.ParseStatus(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status: " + s})
			return
		}
		status = parsed
	}

	episodes, total, err := h.store.List(r.Context(), userID, status, page, perPage)
	if err != nil {
		h.logger.Error("list episodes failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list episodes"})
		return
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episodes":    episodes,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages,
	})
}

func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// Status reports live processing state, preferring the Redis tracker for
// in-flight jobs and falling back to the episode row.
func (h *EpisodeHandler) Status(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := jobs.Status{
		JobID:    ep.JobID,
		Status:   string(ep.Status),
		Progress: ep.Progress,
		Message:  ep.StatusMessage,
		Error:    ep.ErrorMessage,
	}
	if ep.JobID != "" && !ep.Status.Terminal() {
		if live, err := h.tracker.Get(r.Context(), ep.JobID); err == nil && live != nil {
			resp = *live
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episode_id": ep.ID,
		"job_id":     resp.JobID,
		"status":     resp.Status,
		"progress":   resp.Progress,
		"message":    resp.Message,
		"error":      resp.Error,
	})
}

func (h *EpisodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid episode ID"})
		return
	}

	deleted, err := h.store.Delete(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("delete episode failed", "episode_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete episode"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "episode not found"})
		return
	}

	// The episode row is gone; leftover index rows would only orphan.
	if h.chunks != nil {
		if err := h.chunks.DeleteByEpisode(r.Context(), id); err != nil {
			h.logger.Warn("chunk cleanup failed", "episode_id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *EpisodeHandler) load(w http.ResponseWriter, r *http.Request) (*models.Episode, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid episode ID"})
		return nil, false
	}

	ep, err := h.store.GetByIDForUser(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "episode not found"})
		return nil, false
	}
	return ep, true
}
