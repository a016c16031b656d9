package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores objects under a local directory. The API server exposes
// that directory under /media/.
type Filesystem struct {
	root    string
	baseURL string
}

// NewFilesystem returns a backend rooted at dir whose URLs start with baseURL.
func NewFilesystem(dir, baseURL string) (*Filesystem, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("filesystem storage: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filesystem storage: %w", err)
	}
	return &Filesystem{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Name identifies the backend in logs and metrics.
func (f *Filesystem) Name() string { return "filesystem" }

// Write stores body at key via a temp file and rename, so readers never see
// a partially written object.
func (f *Filesystem) Write(ctx context.Context, key, _ string, body io.ReadSeeker, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close object %s: %w", key, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod object %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit object %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL for key.
func (f *Filesystem) URL(key string) string {
	if f.baseURL == "" {
		return "file://" + filepath.ToSlash(filepath.Join(f.root, filepath.FromSlash(key)))
	}
	return joinURL(f.baseURL, key)
}

func (f *Filesystem) resolve(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	if cleaned == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(f.root, cleaned), nil
}
