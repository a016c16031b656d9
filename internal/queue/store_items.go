package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Enqueue inserts a pending job.
func (s *Store) Enqueue(ctx context.Context, job NewJob) (*Item, error) {
	if strings.TrimSpace(job.AssetID) == "" {
		return nil, errors.New("asset id is required")
	}
	if strings.TrimSpace(job.SourcePath) == "" {
		return nil, errors.New("source path is required")
	}
	timestamp := nowString()
	res, err := s.execResult(
		ctx,
		`INSERT INTO jobs (
            asset_id, kind, source_path, mime_type, source_size, options_json,
            status, progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		job.AssetID,
		job.Kind,
		job.SourcePath,
		nullableString(job.MIMEType),
		job.SourceSize,
		nullableString(job.OptionsJSON),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM jobs WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return item, nil
}

// FindActiveByAsset returns the pending or processing job for assetID, if any.
func (s *Store) FindActiveByAsset(ctx context.Context, assetID string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM jobs WHERE asset_id = ? AND status IN (?, ?) ORDER BY id LIMIT 1`,
		assetID, StatusPending, StatusProcessing,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return item, nil
}

// LatestByAsset returns the most recent job for assetID, if any.
func (s *Store) LatestByAsset(ctx context.Context, assetID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM jobs WHERE asset_id = ? ORDER BY id DESC LIMIT 1`, assetID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest job: %w", err)
	}
	return item, nil
}

// Update persists every mutable field of item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.exec(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
             result_json = ?, error_kind = ?, error_message = ?, failed_stage = ?,
             needs_review = ?, attempts = ?, updated_at = ?, started_at = ?,
             completed_at = ?, last_heartbeat = ?, options_json = ?
         WHERE id = ?`,
		item.Status,
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableString(item.ResultJSON),
		nullableString(item.ErrorKind),
		nullableString(item.ErrorMessage),
		nullableString(item.FailedStage),
		boolToInt(item.NeedsReview),
		item.Attempts,
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.StartedAt),
		nullableTime(item.CompletedAt),
		nullableTime(item.LastHeartbeat),
		nullableString(item.OptionsJSON),
		item.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress writes only the progress columns and refreshes the heartbeat.
func (s *Store) UpdateProgress(ctx context.Context, id int64, stage string, percent int, message string) error {
	now := nowString()
	if err := s.exec(
		ctx,
		`UPDATE jobs
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(stage), percent, nullableString(message), now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status (all when none given), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return items, nil
}

// NextPending returns the oldest pending job, or nil.
func (s *Store) NextPending(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM jobs WHERE status = ? ORDER BY id LIMIT 1`, StatusPending)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return item, nil
}

// Remove deletes a job regardless of status.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execResult(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearCompleted deletes completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.deleteWhereStatus(ctx, StatusCompleted)
}

// ClearFailed deletes failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.deleteWhereStatus(ctx, StatusFailed)
}

// Clear deletes every job that is not currently processing.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteWhereStatus(ctx, StatusPending, StatusCompleted, StatusFailed)
}

func (s *Store) deleteWhereStatus(ctx context.Context, statuses ...Status) (int64, error) {
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
	}
	res, err := s.execResult(ctx, `DELETE FROM jobs WHERE status IN (`+makePlaceholders(len(statuses))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
