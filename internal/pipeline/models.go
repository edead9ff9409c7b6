package pipeline

import (
	"errors"
	"time"
)

// JobStatus tracks the lifecycle of one ingestion job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one durable ingestion run for a single track.
type Job struct {
	ID          string
	TrackID     string
	Status      JobStatus
	CurrentStep string
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StepStatus records how a single step attempt ended.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepResult is one ledger entry, unique per (job, step). A completed entry
// memoizes the step's output so re-runs skip the work; a failed entry marks
// where the next run resumes.
type StepResult struct {
	JobID        string
	StepName     string
	Status       StepStatus
	Output       map[string]string
	ErrorMessage string
	CompletedAt  time.Time
}

// ErrAssetUnreachable indicates the stored asset could not be fetched within
// the configured wait. The job stays retryable.
var ErrAssetUnreachable = errors.New("asset unreachable")

// ErrPersistConflict indicates the track row disappeared between upload and
// metadata persistence.
var ErrPersistConflict = errors.New("persist conflict")
