package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"demodrop/internal/config"
)

// ErrJobNotFound indicates a lookup targeted a job that does not exist.
var ErrJobNotFound = errors.New("job does not exist")

// Store persists jobs and their step ledger in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the jobs database.
func (s *Store) Path() string {
	return s.path
}

// CreateJob enqueues a new pending job for a track.
func (s *Store) CreateJob(ctx context.Context, trackID string) (*Job, error) {
	if trackID == "" {
		return nil, errors.New("track id is required")
	}
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		TrackID:   trackID,
		Status:    JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, track_id, status, current_step, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, '', '', ?, ?)`,
		job.ID, job.TrackID, string(job.Status),
		job.CreatedAt.Format(time.RFC3339Nano), job.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, status, current_step, last_error, created_at, updated_at
		 FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, err
}

// JobForTrack returns the most recent job for a track, or nil when none exists.
func (s *Store) JobForTrack(ctx context.Context, trackID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, status, current_step, last_error, created_at, updated_at
		 FROM jobs WHERE track_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, trackID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	query := `SELECT id, track_id, status, current_step, last_error, created_at, updated_at FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (?" + repeatPlaceholder(len(statuses)-1) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// UpdateJob sets the job's status, current step, and last error.
func (s *Store) UpdateJob(ctx context.Context, jobID string, status JobStatus, currentStep, lastError string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, current_step = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), currentStep, lastError, time.Now().UTC().Format(time.RFC3339Nano), jobID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return nil
}

// RecordStepResult writes or replaces the ledger entry for one step.
func (s *Store) RecordStepResult(ctx context.Context, result StepResult) error {
	if result.JobID == "" || result.StepName == "" {
		return errors.New("step result requires job id and step name")
	}
	output := "{}"
	if len(result.Output) > 0 {
		encoded, err := json.Marshal(result.Output)
		if err != nil {
			return fmt.Errorf("encode step output: %w", err)
		}
		output = string(encoded)
	}
	completedAt := result.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_results (job_id, step_name, status, output, error_message, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (job_id, step_name) DO UPDATE SET
		   status = excluded.status,
		   output = excluded.output,
		   error_message = excluded.error_message,
		   completed_at = excluded.completed_at`,
		result.JobID, result.StepName, string(result.Status), output,
		result.ErrorMessage, completedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record step result: %w", err)
	}
	return nil
}

// StepResults returns the ledger entries for a job keyed by step name.
func (s *Store) StepResults(ctx context.Context, jobID string) (map[string]StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, step_name, status, output, error_message, completed_at
		 FROM step_results WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	results := make(map[string]StepResult)
	for rows.Next() {
		var result StepResult
		var status, output, completedAt string
		if err := rows.Scan(&result.JobID, &result.StepName, &status, &output, &result.ErrorMessage, &completedAt); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		result.Status = StepStatus(status)
		if output != "" && output != "{}" {
			if err := json.Unmarshal([]byte(output), &result.Output); err != nil {
				return nil, fmt.Errorf("decode step output: %w", err)
			}
		}
		result.CompletedAt = parseTime(completedAt)
		results[result.StepName] = result
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var status, createdAt, updatedAt string
	err := row.Scan(&job.ID, &job.TrackID, &status, &job.CurrentStep, &job.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
