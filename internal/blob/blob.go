package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/services"
)

// UploadResult is the stored location of an artifact.
type UploadResult struct {
	URL  string
	Path string
}

// Backend is a path-addressed object store.
type Backend interface {
	Name() string
	Write(ctx context.Context, key, contentType string, body io.ReadSeeker, size int64) error
	URL(key string) string
}

// Observer receives the outcome of every upload.
type Observer func(backend string, bytes int64, elapsed time.Duration, err error)

// Uploader persists local artifacts into a Backend.
type Uploader struct {
	backend  Backend
	logger   *slog.Logger
	observer Observer
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithObserver registers a callback invoked after every upload.
func WithObserver(obs Observer) Option {
	return func(u *Uploader) {
		u.observer = obs
	}
}

// NewUploader wraps backend.
func NewUploader(backend Backend, logger *slog.Logger, opts ...Option) *Uploader {
	u := &Uploader{backend: backend, logger: logging.NewComponentLogger(logger, "blob")}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Put uploads b to key. Existing objects at key are overwritten. Failures are
// classified as upload errors with the cause attached; there is no retry.
func (u *Uploader) Put(ctx context.Context, key string, b media.Blob) (UploadResult, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return UploadResult{}, services.Wrap(services.ErrUpload, "upload", "put", "empty key", nil)
	}
	start := time.Now()
	size, err := u.put(ctx, key, b)
	if u.observer != nil {
		u.observer(u.backend.Name(), size, time.Since(start), err)
	}
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrUpload, "upload", key, u.backend.Name(), err)
	}
	logging.WithContext(ctx, u.logger).Debug("artifact uploaded",
		logging.String("key", key),
		logging.Int64("bytes", size),
	)
	return UploadResult{URL: u.backend.URL(key), Path: key}, nil
}

func (u *Uploader) put(ctx context.Context, key string, b media.Blob) (int64, error) {
	file, err := os.Open(b.Path)
	if err != nil {
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	contentType := b.ContentType
	if contentType == "" {
		contentType = media.ContentTypeFor(key)
	}
	if err := u.backend.Write(ctx, key, contentType, file, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ResolveURL returns the public URL for key without contacting the backend.
func (u *Uploader) ResolveURL(key string) string {
	return u.backend.URL(strings.TrimLeft(strings.TrimSpace(key), "/"))
}

func joinURL(base, key string) string {
	trimmedBase := strings.TrimRight(base, "/")
	trimmedKey := strings.TrimLeft(key, "/")
	if trimmedKey == "" {
		return trimmedBase
	}
	return trimmedBase + "/" + trimmedKey
}
