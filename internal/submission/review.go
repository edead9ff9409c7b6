package submission

import (
	"context"
	"fmt"
	"strings"

	"demodrop/internal/records"
	"demodrop/internal/services"
)

// ReviewUpdate carries the reviewer-editable submission fields. Nil fields
// are left untouched, matching the record store's merge-by-field contract.
type ReviewUpdate struct {
	Status *records.ReviewStatus
	Rating *int
	Notes  *string
}

// UpdateReview applies a reviewer's edits to a submission.
func (s *Service) UpdateReview(ctx context.Context, submissionID string, update ReviewUpdate) error {
	fields := records.Fields{}
	if update.Status != nil {
		status, ok := records.ParseReviewStatus(string(*update.Status))
		if !ok {
			return services.Wrap(services.ErrValidation, "submission", "review", "unknown status "+string(*update.Status), nil)
		}
		fields["status"] = string(status)
	}
	if update.Rating != nil {
		if *update.Rating < 0 || *update.Rating > 5 {
			return services.Wrap(services.ErrValidation, "submission", "review", fmt.Sprintf("rating %d outside 0-5", *update.Rating), nil)
		}
		fields["rating"] = *update.Rating
	}
	if update.Notes != nil {
		fields["notes"] = strings.TrimSpace(*update.Notes)
	}
	if len(fields) == 0 {
		return services.Wrap(services.ErrValidation, "submission", "review", "no fields to update", nil)
	}
	return s.records.UpdateSubmissionFields(ctx, submissionID, fields)
}
