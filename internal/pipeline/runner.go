// Package pipeline implements the media-processing stages a claimed job
// walks through before its photo record is complete.
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"lumina/internal/config"
	"lumina/internal/geocode"
	"lumina/internal/logging"
	"lumina/internal/photos"
	"lumina/internal/queue"
	"lumina/internal/services"
	"lumina/internal/storage"
)

// Runner executes stage logic against the active storage provider and the
// photo store. One runner serves all workers; per-job state lives in runState.
type Runner struct {
	cfg      *config.Config
	photos   *photos.Store
	storage  *storage.Manager
	geocoder *geocode.Client
	logger   *slog.Logger
}

// NewRunner wires the stage executor. geocoder may be nil when reverse
// geocoding is disabled; that stage then no-ops.
func NewRunner(cfg *config.Config, photoStore *photos.Store, storageManager *storage.Manager, geocoder *geocode.Client, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		photos:   photoStore,
		storage:  storageManager,
		geocoder: geocoder,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// runState carries data between the stages of a single job execution. A
// retried job rebuilds it from scratch, which keeps stages idempotent via
// deterministic derived keys rather than cross-attempt state.
type runState struct {
	payload     queue.Payload
	provider    storage.Provider
	original    []byte
	width       int
	height      int
	motionVideo []byte
	photo       *photos.Photo
}

// AdvanceFunc records the transition into the named stage before its logic
// runs.
type AdvanceFunc func(ctx context.Context, stage queue.Stage) error

// Process runs a job's full stage sequence in order. The first stage is
// assumed already recorded by the claim; advance is invoked before each
// subsequent stage. Any stage error aborts the sequence and is returned for
// the orchestrator to apply the retry/fail transition.
func (r *Runner) Process(ctx context.Context, job *queue.Job) error {
	return r.process(ctx, job, nil)
}

// ProcessWithAdvance is Process with stage-transition recording.
func (r *Runner) ProcessWithAdvance(ctx context.Context, job *queue.Job, advance AdvanceFunc) error {
	return r.process(ctx, job, advance)
}

func (r *Runner) process(ctx context.Context, job *queue.Job, advance AdvanceFunc) error {
	payload, err := job.Payload()
	if err != nil {
		return err
	}

	provider, err := r.storage.GetActiveProvider(ctx)
	if err != nil {
		return err
	}

	state := &runState{payload: payload, provider: provider}
	stages := queue.StagesFor(payload)
	for i, stage := range stages {
		if i > 0 && advance != nil {
			if err := advance(ctx, stage); err != nil {
				return err
			}
		}
		started := time.Now()
		if err := r.runStage(ctx, stage, state); err != nil {
			return err
		}
		r.logger.Debug("stage finished",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldStage, string(stage)),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, stage queue.Stage, state *runState) error {
	switch stage {
	case queue.StagePreprocessing:
		return r.preprocess(ctx, state)
	case queue.StageMetadata:
		return r.recordMetadata(ctx, state)
	case queue.StageThumbnail:
		return r.generateThumbnail(ctx, state)
	case queue.StageExif:
		return r.extractEXIF(ctx, state)
	case queue.StageMotionPhoto:
		return r.extractMotionPhoto(ctx, state)
	case queue.StageReverseGeocoding:
		return r.reverseGeocode(ctx, state)
	case queue.StageLivePhoto:
		return r.pairLivePhoto(ctx, state)
	default:
		return services.Wrap(services.ErrStageFailure, "pipeline", "run", fmt.Sprintf("unknown stage %q", stage), nil)
	}
}

func thumbnailKey(photoID string) string {
	return "thumbnails/" + photoID + ".jpeg"
}

func livePhotoKey(photoID string) string {
	return "live-photos/" + photoID + ".mp4"
}

func contentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
