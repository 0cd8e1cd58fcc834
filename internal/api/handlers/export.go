package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/podforge/podforge/internal/models"
	"github.com/podforge/podforge/internal/storage"
)

type ExportHandler struct {
	store   episodeLoader
	storage storage.Storage
	logger  *slog.Logger
}

// episodeLoader is the slice of the episode store the export surface needs.
type episodeLoader interface {
	load(w http.ResponseWriter, r *http.Request) (*models.Episode, bool)
}

func NewExportHandler(eh *EpisodeHandler, st storage.Storage, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{store: eh, storage: st, logger: logger}
}

// Summary returns everything a client needs to publish the episode.
func (h *ExportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.store.load(w, r)
	if !ok {
		return
	}
	if ep.Status != models.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "episode is not completed yet"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episode_id":       ep.ID,
		"title":            ep.Title,
		"audio_url":        ep.AudioURL,
		"cover_url":        ep.CoverURL,
		"duration_seconds": ep.DurationSeconds,
		"word_count":       ep.WordCount,
	})
}

// Audio streams the episode audio. The stored URL carries the extension the
// mixer produced, so the artifact name and content type follow it.
func (h *ExportHandler) Audio(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.store.load(w, r)
	if !ok {
		return
	}

	name, contentType := "audio.mp3", "audio/mpeg"
	if ep.AudioURL != nil && strings.EqualFold(path.Ext(*ep.AudioURL), ".wav") {
		name, contentType = "audio.wav", "audio/wav"
	}
	h.serve(w, r, ep, name, contentType)
}

func (h *ExportHandler) Cover(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.store.load(w, r)
	if !ok {
		return
	}
	h.serve(w, r, ep, "cover.png", "image/png")
}

func (h *ExportHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.store.load(w, r)
	if !ok {
		return
	}
	if ep.Transcript == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transcript not available"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episode_id": ep.ID,
		"transcript": ep.Transcript,
	})
}

func (h *ExportHandler) serve(w http.ResponseWriter, r *http.Request, ep *models.Episode, name, contentType string) {
	remote := "episodes/" + ep.ID.String() + "/" + name
	rc, err := h.storage.Download(r.Context(), remote)
	if err != nil {
		h.logger.Warn("artifact download failed", "path", remote, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": name + " not available"})
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("artifact stream interrupted", "path", remote, "error", err)
	}
}
