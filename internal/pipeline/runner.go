package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"demodrop/internal/config"
	"demodrop/internal/logging"
	"demodrop/internal/mediameta"
	"demodrop/internal/records"
	"demodrop/internal/services"
	"demodrop/internal/storage"
)

// Runner executes ingestion jobs against the step ledger.
type Runner struct {
	store        *Store
	records      *records.Store
	assets       storage.Backend
	logger       *slog.Logger
	spoolDir     string
	fetchTimeout time.Duration
	steps        []step
}

// NewRunner constructs a runner. The spool directory under the data dir holds
// fetched assets between steps so resumed runs can reuse them.
func NewRunner(cfg *config.Config, store *Store, recs *records.Store, assets storage.Backend, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	spoolDir := filepath.Join(cfg.Paths.DataDir, "spool")
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	fetchTimeout := time.Duration(cfg.Pipeline.FetchTimeoutSeconds) * time.Second
	if fetchTimeout <= 0 {
		fetchTimeout = time.Minute
	}
	return &Runner{
		store:        store,
		records:      recs,
		assets:       assets,
		logger:       logger.With(logging.String(logging.FieldComponent, "pipeline")),
		spoolDir:     spoolDir,
		fetchTimeout: fetchTimeout,
		steps:        stepSequence,
	}, nil
}

// Enqueue creates a pending job for a track and returns it.
func (r *Runner) Enqueue(ctx context.Context, trackID string) (*Job, error) {
	return r.store.CreateJob(ctx, trackID)
}

// Run executes a job from its first incomplete step. Completed steps found in
// the ledger are skipped; the failure of any step records a failed ledger
// entry and marks the job failed, so the next Run resumes there.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithTrackID(ctx, job.TrackID)
	logger := logging.WithContext(ctx, r.logger)

	results, err := r.store.StepResults(ctx, job.ID)
	if err != nil {
		return err
	}

	state := &runState{}
	for _, s := range r.steps {
		if prior, ok := results[s.name]; ok && prior.Status == StepCompleted {
			if s.hydrate(r, job, state, prior.Output) {
				logger.Debug("skipping completed step", logging.String(logging.FieldStep, s.name))
				continue
			}
			logger.Warn("memoized step output unusable, re-running",
				logging.String(logging.FieldStep, s.name))
		}

		if err := r.store.UpdateJob(ctx, job.ID, JobRunning, s.name, ""); err != nil {
			return err
		}
		logger.Info("running step", logging.String(logging.FieldStep, s.name))

		output, stepErr := s.execute(services.WithStep(ctx, s.name), r, job, state)
		if stepErr != nil {
			if errors.Is(stepErr, context.Canceled) {
				return stepErr
			}
			return r.failStep(ctx, logger, job, s.name, stepErr)
		}

		if err := r.store.RecordStepResult(ctx, StepResult{
			JobID:    job.ID,
			StepName: s.name,
			Status:   StepCompleted,
			Output:   output,
		}); err != nil {
			return err
		}
	}

	if err := r.store.UpdateJob(ctx, job.ID, JobCompleted, "", ""); err != nil {
		return err
	}
	r.cleanupSpool(job.ID)
	logger.Info("job completed")
	return nil
}

func (r *Runner) failStep(ctx context.Context, logger *slog.Logger, job *Job, stepName string, stepErr error) error {
	if err := r.store.RecordStepResult(ctx, StepResult{
		JobID:        job.ID,
		StepName:     stepName,
		Status:       StepFailed,
		ErrorMessage: stepErr.Error(),
	}); err != nil {
		logger.Error("failed to record step failure", logging.Error(err))
	}
	if err := r.store.UpdateJob(ctx, job.ID, JobFailed, stepName, stepErr.Error()); err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
	}
	logger.Error("step failed",
		logging.String(logging.FieldStep, stepName),
		logging.Error(stepErr),
	)
	return fmt.Errorf("step %s: %w", stepName, stepErr)
}

// Retryable reports whether a run error is worth another delivery attempt.
// Unparsable media and persistence conflicts are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPersistConflict) || errors.Is(err, mediameta.ErrUnparsableMedia) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return services.IsRetryable(err) || errors.Is(err, ErrAssetUnreachable)
}

func (r *Runner) cleanupSpool(jobID string) {
	path := filepath.Join(r.spoolDir, jobID+".asset")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove spooled asset",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}
