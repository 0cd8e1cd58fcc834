package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/podforge/podforge/internal/models"
)

type stubLoader struct {
	ep *models.Episode
}

func (s *stubLoader) load(http.ResponseWriter, *http.Request) (*models.Episode, bool) {
	return s.ep, s.ep != nil
}

type stubStorage struct {
	objects map[string]string
}

func (s *stubStorage) Upload(context.Context, string, io.Reader, string) error { return nil }

func (s *stubStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	body, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *stubStorage) Exists(_ context.Context, path string) (bool, error) {
	_, ok := s.objects[path]
	return ok, nil
}

func (s *stubStorage) Delete(context.Context, string) error { return nil }

func (s *stubStorage) GetPublicURL(path string) string { return "https://cdn.example.com/" + path }

func TestAudioServesWavWhenMixedAsWav(t *testing.T) {
	id := uuid.New()
	url := "https://cdn.example.com/episodes/" + id.String() + "/audio.wav"
	ep := &models.Episode{ID: id, AudioURL: &url}
	st := &stubStorage{objects: map[string]string{
		"episodes/" + id.String() + "/audio.wav": "RIFFdata",
	}}
	h := &ExportHandler{store: &stubLoader{ep: ep}, storage: st, logger: slog.New(slog.DiscardHandler)}

	rec := httptest.NewRecorder()
	h.Audio(rec, httptest.NewRequest(http.MethodGet, "/export/"+id.String()+"/audio", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("content type = %q, want audio/wav", ct)
	}
	if rec.Body.String() != "RIFFdata" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAudioDefaultsToMP3(t *testing.T) {
	id := uuid.New()
	url := "https://cdn.example.com/episodes/" + id.String() + "/audio.mp3"
	ep := &models.Episode{ID: id, AudioURL: &url}
	st := &stubStorage{objects: map[string]string{
		"episodes/" + id.String() + "/audio.mp3": "ID3data",
	}}
	h := &ExportHandler{store: &stubLoader{ep: ep}, storage: st, logger: slog.New(slog.DiscardHandler)}

	rec := httptest.NewRecorder()
	h.Audio(rec, httptest.NewRequest(http.MethodGet, "/export/"+id.String()+"/audio", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", ct)
	}
}
