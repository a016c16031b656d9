package api

import (
	"context"

	"sermoncast/internal/queue"
)

type RetryJobOutcome string

const (
	RetryJobUpdated   RetryJobOutcome = "retried"
	RetryJobNotFound  RetryJobOutcome = "not_found"
	RetryJobNotFailed RetryJobOutcome = "not_failed"
)

type RetryJobResult struct {
	ID      int64           `json:"id"`
	Outcome RetryJobOutcome `json:"outcome"`
}

type RetryJobsResult struct {
	UpdatedCount int64            `json:"updatedCount"`
	Jobs         []RetryJobResult `json:"jobs"`
}

// RetryFailedJobsByID validates IDs and retries only failed jobs.
func (s *JobService) RetryFailedJobsByID(ctx context.Context, ids []int64) (RetryJobsResult, error) {
	result := RetryJobsResult{Jobs: make([]RetryJobResult, 0, len(ids))}
	for _, id := range ids {
		item, err := s.store.GetByID(ctx, id)
		if err != nil {
			return RetryJobsResult{}, err
		}
		if item == nil {
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFound})
			continue
		}
		if item.Status != queue.StatusFailed {
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFailed})
			continue
		}
		updated, err := s.store.RetryFailed(ctx, id)
		if err != nil {
			return RetryJobsResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobUpdated})
			continue
		}
		result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFailed})
	}
	return result, nil
}

type RemoveJobOutcome string

const (
	RemoveJobRemoved    RemoveJobOutcome = "removed"
	RemoveJobNotFound   RemoveJobOutcome = "not_found"
	RemoveJobProcessing RemoveJobOutcome = "processing"
)

type RemoveJobResult struct {
	ID      int64            `json:"id"`
	Outcome RemoveJobOutcome `json:"outcome"`
}

type RemoveJobsResult struct {
	RemovedCount int64             `json:"removedCount"`
	Jobs         []RemoveJobResult `json:"jobs"`
}

// RemoveJobsByID removes jobs one-by-one so each ID reports its outcome.
// Processing jobs are left alone.
func (s *JobService) RemoveJobsByID(ctx context.Context, ids []int64) (RemoveJobsResult, error) {
	result := RemoveJobsResult{Jobs: make([]RemoveJobResult, 0, len(ids))}
	for _, id := range ids {
		item, err := s.store.GetByID(ctx, id)
		if err != nil {
			return RemoveJobsResult{}, err
		}
		if item == nil {
			result.Jobs = append(result.Jobs, RemoveJobResult{ID: id, Outcome: RemoveJobNotFound})
			continue
		}
		if item.IsProcessing() {
			result.Jobs = append(result.Jobs, RemoveJobResult{ID: id, Outcome: RemoveJobProcessing})
			continue
		}
		removed, err := s.store.Remove(ctx, id)
		if err != nil {
			return RemoveJobsResult{}, err
		}
		if removed {
			result.RemovedCount++
			result.Jobs = append(result.Jobs, RemoveJobResult{ID: id, Outcome: RemoveJobRemoved})
			continue
		}
		result.Jobs = append(result.Jobs, RemoveJobResult{ID: id, Outcome: RemoveJobNotFound})
	}
	return result, nil
}
