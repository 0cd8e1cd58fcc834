package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/podforge/podforge/internal/jobs"
)

type JobHandler struct {
	tracker *jobs.Tracker
}

func NewJobHandler(tracker *jobs.Tracker) *JobHandler {
	return &JobHandler{tracker: tracker}
}

// Get returns the live progress of a job by its queue task id.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job ID required"})
		return
	}

	status, err := h.tracker.Get(r.Context(), jobID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read job status"})
		return
	}
	if status == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}
