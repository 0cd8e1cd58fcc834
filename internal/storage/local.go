package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps objects on the local filesystem. Useful for development and
// single-node deployments where a bucket is overkill.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(l.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object path: %s", path)
	}
	return full, nil
}

func (l *Local) Upload(_ context.Context, path string, r io.Reader, _ string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (l *Local) Download(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

func (l *Local) Delete(_ context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (l *Local) GetPublicURL(path string) string {
	return "/files/" + strings.TrimLeft(path, "/")
}
