package records

import (
	"strings"
	"time"
)

// ReviewStatus represents the reviewer-owned lifecycle of a submission.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "Pending"
	StatusInReview ReviewStatus = "In-Review"
	StatusApproved ReviewStatus = "Approved"
	StatusRejected ReviewStatus = "Rejected"
)

var reviewStatuses = map[ReviewStatus]struct{}{
	StatusPending:  {},
	StatusInReview: {},
	StatusApproved: {},
	StatusRejected: {},
}

// ParseReviewStatus converts a string into a known ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, bool) {
	normalized := ReviewStatus(strings.TrimSpace(value))
	_, ok := reviewStatuses[normalized]
	return normalized, ok
}

// Submission is one artist's submission attempt, owning zero or more tracks.
type Submission struct {
	ID        string
	Name      string
	Email     string
	Bio       string
	Instagram string
	Spotify   string
	Status    ReviewStatus
	Rating    int
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Track is a single uploaded demo asset plus submitter-supplied and derived
// metadata. Derived fields stay at their zero values until the ingestion
// pipeline persists them.
type Track struct {
	ID           string
	SubmissionID string
	Title        string
	Genre        string
	BPM          string
	KeySignature string
	Description  string
	FileLocation string

	ContainerFormat string
	DurationSeconds float64
	BitrateBps      int64
	SampleRateHz    int64
	Codec           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDerivedMetadata reports whether the pipeline has written decoded fields.
func (t *Track) HasDerivedMetadata() bool {
	return t.ContainerFormat != "" || t.Codec != "" || t.DurationSeconds > 0
}
