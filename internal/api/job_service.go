package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sermoncast/internal/blob"
	"sermoncast/internal/media"
	"sermoncast/internal/pipeline"
	"sermoncast/internal/queue"
	"sermoncast/internal/services"
)

// ErrAlreadyQueued is returned by Enqueue when the asset has a pending or
// processing job.
var ErrAlreadyQueued = errors.New("asset already queued")

// JobStore abstracts the queue operations behind the job API.
type JobStore interface {
	Enqueue(ctx context.Context, job queue.NewJob) (*queue.Item, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
	FindActiveByAsset(ctx context.Context, assetID string) (*queue.Item, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

// JobService exposes job operations returning API DTOs.
type JobService struct {
	store JobStore
}

// NewJobService constructs a JobService around the provided store.
func NewJobService(store JobStore) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs filtered by status.
func (s *JobService) List(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single job. A missing job yields (nil, nil).
func (s *JobService) Describe(ctx context.Context, id int64) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromItem(item)
	return &dto, nil
}

// Enqueue validates an upload and queues it. The source must exist and match
// the declared kind; options are checked against the kind's defaults. An
// empty asset id is replaced with a random UUID.
func (s *JobService) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	kind, err := media.ParseKind(req.Kind)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "enqueue", "kind", "", err)
	}

	assetID := strings.TrimSpace(req.AssetID)
	if assetID == "" {
		assetID = uuid.NewString()
	}
	if err := blob.ValidateAssetID(assetID); err != nil {
		return nil, services.Wrap(services.ErrValidation, "enqueue", "asset id", "", err)
	}

	sourcePath := strings.TrimSpace(req.SourcePath)
	if sourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "enqueue", "source", "source path is required", nil)
	}
	if abs, err := filepath.Abs(sourcePath); err == nil {
		sourcePath = abs
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "enqueue", "source", sourcePath, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "enqueue", "source", sourcePath+" is a directory", nil)
	}

	mimeType := strings.TrimSpace(req.MIMEType)
	if mimeType == "" {
		mimeType = media.GuessMIME(sourcePath)
	}
	src := media.Source{Path: sourcePath, MIMEType: mimeType, Size: info.Size()}
	if err := media.CheckFileType(kind, src); err != nil {
		return nil, services.Wrap(services.ErrInvalidFileType, "enqueue", "file type", "", err)
	}

	optionsJSON, err := normalizeOptions(kind, req.Options)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindActiveByAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("check active jobs: %w", err)
	}
	if existing != nil {
		dto := FromItem(existing)
		return &dto, fmt.Errorf("%w: %s is job %d (%s)", ErrAlreadyQueued, assetID, existing.ID, existing.Status)
	}

	item, err := s.store.Enqueue(ctx, queue.NewJob{
		AssetID:     assetID,
		Kind:        string(kind),
		SourcePath:  sourcePath,
		MIMEType:    mimeType,
		SourceSize:  info.Size(),
		OptionsJSON: optionsJSON,
	})
	if err != nil {
		return nil, err
	}
	dto := FromItem(item)
	return &dto, nil
}

// normalizeOptions validates raw options against kind and returns the
// compacted payload to persist. Null or empty options persist as "".
func normalizeOptions(kind media.Kind, raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	opts := pipeline.DefaultOptions(kind)
	if err := json.Unmarshal(trimmed, &opts); err != nil {
		return "", services.Wrap(services.ErrValidation, "enqueue", "options", "invalid options payload", err)
	}
	if err := opts.Normalized().Validate(kind); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", services.Wrap(services.ErrValidation, "enqueue", "options", "invalid options payload", err)
	}
	return buf.String(), nil
}
