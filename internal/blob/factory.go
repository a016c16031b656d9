package blob

import (
	"context"
	"fmt"
	"log/slog"

	"sermoncast/internal/config"
)

// NewFromConfig selects the configured backend and wraps it in an Uploader.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Uploader, error) {
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewUploader(backend, logger, opts...), nil
}

// NewBackend constructs the storage backend named by storage.backend.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		return NewS3(ctx, S3Options{
			Bucket:        cfg.Storage.S3Bucket,
			Region:        cfg.Storage.S3Region,
			Endpoint:      cfg.Storage.S3Endpoint,
			PathStyle:     cfg.Storage.S3PathStyle,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
	case config.StorageFilesystem, "":
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			base = "http://" + cfg.Paths.APIBind + "/media"
		}
		return NewFilesystem(cfg.Storage.LocalDir, base)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
