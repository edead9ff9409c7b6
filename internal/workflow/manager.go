package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"demodrop/internal/events"
	"demodrop/internal/logging"
	"demodrop/internal/pipeline"
)

// Manager consumes upload events and drives ingestion jobs to completion.
type Manager struct {
	bus    *events.Bus
	runner *pipeline.Runner
	jobs   *pipeline.Store
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	lastErr error
}

// NewManager wires the bus to the pipeline runner.
func NewManager(bus *events.Bus, runner *pipeline.Runner, jobs *pipeline.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		bus:    bus,
		runner: runner,
		jobs:   jobs,
		logger: logger.With(logging.String(logging.FieldComponent, "workflow")),
	}
}

// Start registers the upload handler on the bus. The bus owns the worker
// goroutines; the manager only reacts to deliveries.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	m.bus.Subscribe(events.TrackUploaded, m.handleTrackUploaded)
	m.running = true
	return nil
}

// Stop marks the manager stopped. Deliveries already in flight finish on the
// bus's own shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

// LastError returns the most recent job failure observed by the manager.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

// handleTrackUploaded resolves the durable job for the event's track and runs
// it. Redelivered events reuse the existing job, so the step ledger, not the
// event count, decides how much work happens. A returned error asks the bus
// for another delivery; permanent failures return nil and stay in the ledger.
func (m *Manager) handleTrackUploaded(ctx context.Context, evt events.Event) error {
	trackID := evt.Payload["track_id"]
	if trackID == "" {
		m.logger.Warn("upload event without track id",
			logging.String("event_id", evt.ID),
		)
		return nil
	}

	job, err := m.jobs.JobForTrack(ctx, trackID)
	if err != nil {
		return err
	}
	if job == nil {
		job, err = m.runner.Enqueue(ctx, trackID)
		if err != nil {
			return err
		}
	}
	if job.Status == pipeline.JobCompleted {
		return nil
	}

	runErr := m.runner.Run(ctx, job.ID)
	if runErr == nil {
		return nil
	}
	m.setLastError(runErr)

	if pipeline.Retryable(runErr) {
		return runErr
	}
	m.logger.Error("job failed permanently",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldTrackID, trackID),
		logging.Int("attempt", evt.Attempt),
		logging.Error(runErr),
	)
	return nil
}

// RetryJob re-runs a failed job outside the event flow, for operator use.
func (m *Manager) RetryJob(ctx context.Context, jobID string) error {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == pipeline.JobCompleted {
		return nil
	}
	return m.runner.Run(ctx, job.ID)
}
