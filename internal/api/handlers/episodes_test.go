package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/models"
)

type stubEpisodeStore struct {
	deleteOK  bool
	deleteErr error
}

func (s *stubEpisodeStore) Create(context.Context, *models.Episode) error { return nil }

func (s *stubEpisodeStore) GetByIDForUser(context.Context, uuid.UUID, uuid.UUID) (*models.Episode, error) {
	return nil, errors.New("not found")
}

func (s *stubEpisodeStore) List(context.Context, uuid.UUID, models.EpisodeStatus, int, int) ([]*models.Episode, int, error) {
	return nil, 0, nil
}

func (s *stubEpisodeStore) Delete(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return s.deleteOK, s.deleteErr
}

func (s *stubEpisodeStore) SetJobID(context.Context, uuid.UUID, string) error { return nil }

type stubChunkDeleter struct {
	deleted []uuid.UUID
	err     error
}

func (s *stubChunkDeleter) DeleteByEpisode(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func deleteRequest(id uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/episodes/"+id.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDeleteRemovesIndexedChunks(t *testing.T) {
	id := uuid.New()
	chunks := &stubChunkDeleter{}
	h := NewEpisodeHandler(&stubEpisodeStore{deleteOK: true}, nil, nil, chunks, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	h.Delete(rec, deleteRequest(id))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(chunks.deleted) != 1 || chunks.deleted[0] != id {
		t.Errorf("chunk cleanup saw %v, want [%s]", chunks.deleted, id)
	}
}

func TestDeleteMissingEpisodeSkipsChunkCleanup(t *testing.T) {
	chunks := &stubChunkDeleter{}
	h := NewEpisodeHandler(&stubEpisodeStore{deleteOK: false}, nil, nil, chunks, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	h.Delete(rec, deleteRequest(uuid.New()))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if len(chunks.deleted) != 0 {
		t.Error("chunk cleanup ran for a missing episode")
	}
}

func TestDeleteSucceedsWhenChunkCleanupFails(t *testing.T) {
	chunks := &stubChunkDeleter{err: errors.New("index down")}
	h := NewEpisodeHandler(&stubEpisodeStore{deleteOK: true}, nil, nil, chunks, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	h.Delete(rec, deleteRequest(uuid.New()))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
