package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"demodrop/internal/config"
	"demodrop/internal/events"
	"demodrop/internal/logging"
	"demodrop/internal/pipeline"
	"demodrop/internal/records"
	"demodrop/internal/storage"
	"demodrop/internal/workflow"
)

// Daemon coordinates the background ingestion services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	records  *records.Store
	jobs     *pipeline.Store
	bus      *events.Bus
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	RecordsPath  string
	JobsPath     string
	LockFilePath string
	PendingJobs  int
	FailedJobs   int
}

// New constructs a daemon and its service graph from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	recs, err := records.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open records store: %w", err)
	}
	jobs, err := pipeline.Open(cfg)
	if err != nil {
		recs.Close()
		return nil, fmt.Errorf("open jobs store: %w", err)
	}
	backend, err := storage.New(cfg)
	if err != nil {
		jobs.Close()
		recs.Close()
		return nil, fmt.Errorf("init storage backend: %w", err)
	}

	bus := events.NewBus(logger, cfg.Pipeline.MaxDeliveryAttempts, cfg.Pipeline.RetryBackoff())
	runner, err := pipeline.NewRunner(cfg, jobs, recs, backend, logger)
	if err != nil {
		jobs.Close()
		recs.Close()
		return nil, fmt.Errorf("init pipeline runner: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "demodropd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		records:  recs,
		jobs:     jobs,
		bus:      bus,
		workflow: workflow.NewManager(bus, runner, jobs, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Records exposes the record store for collaborators like the live view.
func (d *Daemon) Records() *records.Store { return d.records }

// Jobs exposes the job ledger for operator commands.
func (d *Daemon) Jobs() *pipeline.Store { return d.jobs }

// Bus exposes the event transport for publishers.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Workflow exposes the workflow manager for retry commands.
func (d *Daemon) Workflow() *workflow.Manager { return d.workflow }

// Start acquires the daemon lock and launches the event bus and workflow.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another demodrop daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.bus.Start(runCtx, 2); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start event bus: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("demodrop daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.bus.Stop()
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("demodrop daemon stopped")
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.jobs != nil {
		errs = append(errs, d.jobs.Close())
	}
	if d.records != nil {
		errs = append(errs, d.records.Close())
	}
	return errors.Join(errs...)
}

// Status summarizes the daemon's current state.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:      d.running.Load(),
		RecordsPath:  d.records.Path(),
		JobsPath:     d.jobs.Path(),
		LockFilePath: d.lockPath,
	}
	pending, err := d.jobs.ListJobs(ctx, pipeline.JobPending, pipeline.JobRunning)
	if err != nil {
		return status, err
	}
	failed, err := d.jobs.ListJobs(ctx, pipeline.JobFailed)
	if err != nil {
		return status, err
	}
	status.PendingJobs = len(pending)
	status.FailedJobs = len(failed)
	return status, nil
}
