// Package workflow runs the worker loops that drain the pipeline queue.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lumina/internal/config"
	"lumina/internal/logging"
	"lumina/internal/pipeline"
	"lumina/internal/queue"
)

// Manager coordinates queue processing across a fixed pool of workers. The
// queue table is the only coordination point between workers; claims are
// atomic read-modify-write so no job is processed twice concurrently.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	runner        *pipeline.Runner
	logger        *slog.Logger
	pollInterval  time.Duration
	retryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager around a stage runner.
func NewManager(cfg *config.Config, store *queue.Store, runner *pipeline.Runner, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:           cfg,
		store:         store,
		runner:        runner,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
}

// Start launches the worker pool. Workers run until Stop or context
// cancellation; Start itself returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}

	m.logger.Info("workflow started", logging.Int("workers", workers))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to release. Claimed
// jobs return to pending so a restart resumes them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the most recent worker-level error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
