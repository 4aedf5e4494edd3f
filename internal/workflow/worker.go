package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lumina/internal/logging"
	"lumina/internal/queue"
)

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int(logging.FieldWorker, index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
			)
			if !m.sleep(ctx, m.retryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
			continue
		}

		// A fresh request id per claim correlates every log line of one run.
		runLogger := logger.With(logging.String("requestId", uuid.NewString()))
		if err := m.processJob(ctx, runLogger, job); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

// processJob executes the job's stage sequence and applies the resulting
// state transition. A cancelled run releases the job back to pending without
// recording a failure; the fresh context lets the release commit during
// shutdown.
func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	logger.Info("processing job",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, string(job.StatusStage)),
		logging.Int("attempt", job.Attempts),
	)
	started := time.Now()

	err := m.runner.ProcessWithAdvance(ctx, job, func(stageCtx context.Context, stage queue.Stage) error {
		return m.store.AdvanceStage(stageCtx, job, stage)
	})
	if err == nil {
		if err := m.store.MarkCompleted(ctx, job); err != nil {
			m.setLastError(err)
			logger.Error("failed to finalize job", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
			return err
		}
		logger.Info("job completed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Duration("elapsed", time.Since(started)),
		)
		return nil
	}

	if errors.Is(err, context.Canceled) {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if releaseErr := m.store.ReturnToPending(releaseCtx, job); releaseErr != nil {
			m.setLastError(releaseErr)
			logger.Error("failed to release job on shutdown", logging.Int64(logging.FieldJobID, job.ID), logging.Error(releaseErr))
		}
		return err
	}

	if failErr := m.store.MarkStageFailed(ctx, job, err); failErr != nil {
		m.setLastError(failErr)
		logger.Error("failed to record stage failure", logging.Int64(logging.FieldJobID, job.ID), logging.Error(failErr))
		return failErr
	}

	if job.Status == queue.StatusFailed {
		logger.Error("job failed terminally",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int("attempts", job.Attempts),
			logging.Error(err),
		)
	} else {
		logger.Warn("stage failed, job returned to pending",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int("attempt", job.Attempts),
			logging.Error(err),
		)
	}
	return nil
}

// sleep waits for the interval or shutdown, whichever comes first. A zero
// interval yields immediately, which keeps test loops spinning.
func (m *Manager) sleep(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(interval):
		return true
	}
}
