package queue

import (
	"context"
	"fmt"
)

// ResetStuckProcessing returns jobs left in processing by a previous daemon
// back to pending.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execResult(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_stage = NULL, progress_percent = 0, progress_message = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		DaemonStopReason,
		nowString(),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the heartbeat of an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowString()
	if err := s.exec(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// RetryFailed moves failed jobs back to pending. With no ids every failed job
// is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE jobs
        SET status = ?, progress_stage = NULL, progress_percent = 0,
            progress_message = 'Retry requested', error_kind = NULL, error_message = NULL,
            failed_stage = NULL, needs_review = 0, completed_at = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, nowString(), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execResult(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}
