package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/podforge/podforge/internal/config"
)

// Storage abstracts where finished audio and cover files live.
type Storage interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	GetPublicURL(path string) string
}

func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "supabase":
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket)
	case "local", "":
		return NewLocal(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
