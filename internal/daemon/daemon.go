// Package daemon coordinates the background services: the settings store, the
// storage provider manager, the worker pool, and the HTTP API. It enforces
// single-instance execution through a filesystem lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"lumina/internal/config"
	"lumina/internal/db"
	"lumina/internal/geocode"
	"lumina/internal/logging"
	"lumina/internal/photos"
	"lumina/internal/pipeline"
	"lumina/internal/queue"
	"lumina/internal/settings"
	"lumina/internal/storage"
	"lumina/internal/workflow"
)

// Daemon owns the shared database handle and every service built on it.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	database *db.DB

	queueStore *queue.Store
	photoStore *photos.Store
	settings   *settings.Store
	storage    *storage.Manager
	workflow   *workflow.Manager
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	DatabasePath    string
	LockFilePath    string
	StorageProvider string
	PhotoCount      int
	WorkflowRunning bool
	LastError       string
	QueueStats      map[queue.Status]int
}

// New constructs a daemon and every service it manages on top of the shared
// database handle. The handle is owned by the daemon from here on; Close
// releases it.
func New(cfg *config.Config, database *db.DB, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || database == nil {
		return nil, errors.New("daemon requires config and database")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	queueStore := queue.NewStore(database)
	photoStore := photos.NewStore(database)
	settingsStore := settings.NewStore(database, logger)
	storageManager := storage.NewManager(database, settingsStore, logger)

	var geocoder *geocode.Client
	if cfg.Geocoding.Enabled {
		geocoder = geocode.NewClient(cfg.Geocoding)
	}
	runner := pipeline.NewRunner(cfg, photoStore, storageManager, geocoder, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "luminad.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		database:   database,
		queueStore: queueStore,
		photoStore: photoStore,
		settings:   settingsStore,
		storage:    storageManager,
		workflow:   workflow.NewManager(cfg, queueStore, runner, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, seeds settings and storage state,
// requeues jobs interrupted by the previous shutdown, and launches the worker
// pool and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lumina daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.bootstrap(d.ctx); err != nil {
		d.teardown()
		return err
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.workflow.Stop()
			d.teardown()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("lumina daemon started", logging.String("lock", d.lockPath))
	return nil
}

// bootstrap brings the persistent state to a runnable baseline. Settings
// seeding must precede storage manager initialization, which reads the active
// provider selection from the settings store.
func (d *Daemon) bootstrap(ctx context.Context) error {
	if err := d.settings.Init(ctx, settings.Defaults(d.cfg.StorageRoot())); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := d.storage.Init(ctx); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	requeued, err := d.queueStore.ResetStuckInStages(ctx)
	if err != nil {
		return fmt.Errorf("requeue interrupted jobs: %w", err)
	}
	if requeued > 0 {
		d.logger.Info("requeued jobs interrupted by previous shutdown", logging.Int64("count", requeued))
	}
	return nil
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("lumina daemon stopped")
}

// Close releases resources held by the daemon, including the database handle.
func (d *Daemon) Close() error {
	d.Stop()
	if d.database != nil {
		return d.database.Close()
	}
	return nil
}

// Running reports whether Start has completed and Stop has not yet run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API listener address, or empty when the API is
// disabled or not yet started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status gathers runtime information across the daemon's services. Individual
// lookup failures degrade to empty fields rather than failing the whole call.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.database.Path(),
		LockFilePath:    d.lockPath,
		WorkflowRunning: d.workflow.Running(),
	}
	if err := d.workflow.LastError(); err != nil {
		status.LastError = err.Error()
	}
	if stats, err := d.queueStore.Stats(ctx); err == nil {
		status.QueueStats = stats
	}
	if count, err := d.photoStore.Count(ctx); err == nil {
		status.PhotoCount = count
	}
	if provider, err := d.settings.GetString(ctx, settings.NamespaceStorage, settings.KeyStorageProvider, ""); err == nil {
		status.StorageProvider = provider
	}
	return status
}

// EnqueuePhoto schedules full pipeline processing for an uploaded original.
func (d *Daemon) EnqueuePhoto(ctx context.Context, storageKey string, priority int) (*queue.Job, error) {
	return d.queueStore.Enqueue(ctx, queue.PhotoPayload{StorageKey: storageKey}, priority, d.cfg.Pipeline.MaxAttempts)
}

// EnqueueLivePhotoVideo schedules pairing of a companion video with its photo.
func (d *Daemon) EnqueueLivePhotoVideo(ctx context.Context, storageKey string, priority int) (*queue.Job, error) {
	return d.queueStore.Enqueue(ctx, queue.LivePhotoVideoPayload{StorageKey: storageKey}, priority, d.cfg.Pipeline.MaxAttempts)
}

// EnqueueGeocoding schedules location resolution for an existing photo.
func (d *Daemon) EnqueueGeocoding(ctx context.Context, payload queue.ReverseGeocodingPayload, priority int) (*queue.Job, error) {
	return d.queueStore.Enqueue(ctx, payload, priority, d.cfg.Pipeline.MaxAttempts)
}

// ListQueue returns queue jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.queueStore.List(ctx, statuses...)
}

// RetryFailed resets terminally failed jobs for a fresh run. Without IDs it
// retries every failed job.
func (d *Daemon) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return d.queueStore.RetryFailed(ctx, ids...)
}

// PruneCompleted removes completed jobs that finished more than olderThan
// ago, keeping recent history inspectable while bounding queue growth.
func (d *Daemon) PruneCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	return d.queueStore.OlderCompletedThan(ctx, time.Now().Add(-olderThan))
}

// ClearQueue removes jobs in a terminal state. status limits removal to
// "completed" or "failed"; empty clears the whole queue.
func (d *Daemon) ClearQueue(ctx context.Context, status queue.Status) (int64, error) {
	switch status {
	case queue.StatusCompleted:
		return d.queueStore.ClearCompleted(ctx)
	case queue.StatusFailed:
		return d.queueStore.ClearFailed(ctx)
	case "":
		return d.queueStore.Clear(ctx)
	default:
		return 0, fmt.Errorf("cannot clear jobs by status %q", status)
	}
}
