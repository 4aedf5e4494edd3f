package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckInStages returns jobs orphaned in in-stages back to pending.
// Called once at daemon startup; a job left in-stages by a crash mid-write
// resumes from the start of its sequence on the next claim.
func (s *Store) ResetStuckInStages(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(
		ctx,
		`UPDATE pipeline_queue
         SET status = ?, status_stage = NULL
         WHERE status = ?`,
		StatusPending,
		StatusInStages,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending with a fresh attempt budget.
// With no ids, all failed jobs are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.Exec(
			ctx,
			`UPDATE pipeline_queue
             SET status = ?, status_stage = NULL, attempts = 0, error_message = NULL
             WHERE status = ?`,
			StatusPending,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE pipeline_queue
        SET status = ?, status_stage = NULL, attempts = 0, error_message = NULL
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM pipeline_queue WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM pipeline_queue WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM pipeline_queue`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// OlderCompletedThan removes completed jobs finished before the cutoff.
func (s *Store) OlderCompletedThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(
		ctx,
		`DELETE FROM pipeline_queue WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusCompleted,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune completed: %w", err)
	}
	return res.RowsAffected()
}
