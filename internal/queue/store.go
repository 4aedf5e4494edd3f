// Package queue persists the media-processing pipeline queue in SQLite.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lumina/internal/db"
	"lumina/internal/services"
)

// Store manages pipeline queue persistence.
type Store struct {
	db *db.DB
}

// NewStore wraps the shared database handle.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Enqueue inserts a new pending job for the given payload.
func (s *Store) Enqueue(ctx context.Context, payload Payload, priority, maxAttempts int) (*Job, error) {
	raw, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.Exec(
		ctx,
		`INSERT INTO pipeline_queue (payload, priority, attempts, max_attempts, status, created_at)
         VALUES (?, ?, 0, ?, ?, ?)`,
		string(raw),
		priority,
		maxAttempts,
		StatusPending,
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

// GetByID fetches a job by identifier. Missing jobs return nil, not an error.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM pipeline_queue WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// claimVerifyAttempts bounds the claim-then-verify loop when workers race.
const claimVerifyAttempts = 3

// ClaimNext atomically claims the next pending job for processing: highest
// priority first, oldest first within equal priority. Claiming moves the job
// to in-stages at the first stage of its payload sequence and increments
// attempts. Returns nil when the queue has no claimable work.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	for attempt := 0; attempt < claimVerifyAttempts; attempt++ {
		row := s.db.QueryRow(
			ctx,
			`SELECT `+jobColumns+` FROM pipeline_queue
             WHERE status = ?
             ORDER BY priority DESC, created_at ASC, id ASC
             LIMIT 1`,
			StatusPending,
		)
		candidate, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claim candidate: %w", err)
		}

		payload, err := candidate.Payload()
		if err != nil {
			// Corrupt payloads are failed terminally rather than looping forever.
			if failErr := s.failCorrupt(ctx, candidate, err); failErr != nil {
				return nil, failErr
			}
			continue
		}
		stages := StagesFor(payload)
		if len(stages) == 0 {
			return nil, services.Wrap(services.ErrValidation, "queue", "claim", "payload has no stage sequence", nil)
		}

		res, err := s.db.Exec(
			ctx,
			`UPDATE pipeline_queue
             SET status = ?, status_stage = ?, attempts = attempts + 1, error_message = NULL
             WHERE id = ? AND status = ?`,
			StatusInStages,
			stages[0],
			candidate.ID,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race to another worker; pick the next candidate.
			continue
		}
		return s.GetByID(ctx, candidate.ID)
	}
	return nil, nil
}

func (s *Store) failCorrupt(ctx context.Context, job *Job, cause error) error {
	_, err := s.db.Exec(
		ctx,
		`UPDATE pipeline_queue
         SET status = ?, status_stage = NULL, error_message = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		cause.Error(),
		job.ID,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("fail corrupt job: %w", err)
	}
	return nil
}

// AdvanceStage moves an in-stages job to its next stage.
func (s *Store) AdvanceStage(ctx context.Context, job *Job, next Stage) error {
	res, err := s.db.Exec(
		ctx,
		`UPDATE pipeline_queue SET status_stage = ? WHERE id = ? AND status = ?`,
		next,
		job.ID,
		StatusInStages,
	)
	if err != nil {
		return fmt.Errorf("advance stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "advance", fmt.Sprintf("job %d is not in-stages", job.ID), nil)
	}
	job.Status = StatusInStages
	job.StatusStage = next
	return nil
}

// MarkCompleted finalizes a successful job: status moves to completed,
// the stage marker clears, and the completion time is recorded.
func (s *Store) MarkCompleted(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		ctx,
		`UPDATE pipeline_queue
         SET status = ?, status_stage = NULL, error_message = NULL, completed_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		now.Format(time.RFC3339Nano),
		job.ID,
		StatusInStages,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	job.Status = StatusCompleted
	job.StatusStage = ""
	job.ErrorMessage = ""
	job.CompletedAt = &now
	return nil
}

// MarkStageFailed records a stage failure. Jobs with attempts left return to
// pending for a later retry; exhausted jobs fail terminally. Either way the
// stage marker clears and the error message is kept.
func (s *Store) MarkStageFailed(ctx context.Context, job *Job, stageErr error) error {
	message := "stage failure"
	if stageErr != nil {
		message = stageErr.Error()
	}

	next := StatusPending
	if job.Attempts >= job.MaxAttempts {
		next = StatusFailed
	}

	_, err := s.db.Exec(
		ctx,
		`UPDATE pipeline_queue
         SET status = ?, status_stage = NULL, error_message = ?
         WHERE id = ? AND status = ?`,
		next,
		message,
		job.ID,
		StatusInStages,
	)
	if err != nil {
		return fmt.Errorf("record stage failure: %w", err)
	}
	job.Status = next
	job.StatusStage = ""
	job.ErrorMessage = message
	return nil
}

// ReturnToPending releases a claimed job without recording a failure. Used on
// shutdown so in-flight work resumes after restart.
func (s *Store) ReturnToPending(ctx context.Context, job *Job) error {
	_, err := s.db.Exec(
		ctx,
		`UPDATE pipeline_queue
         SET status = ?, status_stage = NULL
         WHERE id = ? AND status = ?`,
		StatusPending,
		job.ID,
		StatusInStages,
	)
	if err != nil {
		return fmt.Errorf("return job to pending: %w", err)
	}
	job.Status = StatusPending
	job.StatusStage = ""
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM pipeline_queue`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.Query(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.Query(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(1) FROM pipeline_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusInStages:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, payload, priority, attempts, max_attempts, status, status_stage, error_message, created_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		payload      string
		priority     int
		attempts     int
		maxAttempts  int
		statusStr    string
		statusStage  sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&payload,
		&priority,
		&attempts,
		&maxAttempts,
		&statusStr,
		&statusStage,
		&errorMessage,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		RawPayload:   payload,
		Priority:     priority,
		Attempts:     attempts,
		MaxAttempts:  maxAttempts,
		Status:       Status(statusStr),
		StatusStage:  Stage(statusStage.String),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
