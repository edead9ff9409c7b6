package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"demodrop/internal/config"
	"demodrop/internal/events"
	"demodrop/internal/logging"
	"demodrop/internal/notifications"
	"demodrop/internal/records"
	"demodrop/internal/services"
	"demodrop/internal/storage"
	"demodrop/internal/upload"
)

// ErrNoAssetsStored indicates every upload in the batch failed, so there is
// nothing to submit.
var ErrNoAssetsStored = errors.New("no assets were stored")

// ArtistInfo is the submitter-supplied identity block.
type ArtistInfo struct {
	Name      string
	Email     string
	Bio       string
	Instagram string
	Spotify   string
}

// TrackForm pairs one asset with its submitter-entered details.
type TrackForm struct {
	Title        string
	Genre        string
	BPM          string
	KeySignature string
	Description  string
	Asset        upload.Asset
}

// Result reports what a submission attempt recorded. FailedUploads lists
// assets that did not land; they are excluded, not blocking.
type Result struct {
	Submission    *records.Submission
	Tracks        []*records.Track
	FailedUploads []upload.FailedUnit
}

// Service runs submission attempts end to end.
type Service struct {
	cfg     *config.Config
	records *records.Store
	backend storage.Backend
	bus     *events.Bus
	mailer  notifications.Service
	logger  *slog.Logger
}

// NewService wires the submission flow.
func NewService(cfg *config.Config, recs *records.Store, backend storage.Backend, bus *events.Bus, mailer notifications.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if mailer == nil {
		mailer = notifications.NewService(cfg)
	}
	return &Service{
		cfg:     cfg,
		records: recs,
		backend: backend,
		bus:     bus,
		mailer:  mailer,
		logger:  logger.With(logging.String(logging.FieldComponent, "submission")),
	}
}

// Submit uploads the batch, records the submission with one track per stored
// asset, publishes an ingestion event per track, and sends the confirmation
// email. Upload failures exclude their track but do not abort the attempt;
// a confirmation email failure never rolls anything back.
func (s *Service) Submit(ctx context.Context, artist ArtistInfo, tracks []TrackForm) (*Result, error) {
	if err := validateArtist(artist); err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, upload.ErrEmptyBatch
	}

	// One correlation id ties every log line of this attempt together.
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)

	coord := upload.NewCoordinator(s.cfg, s.backend, logger)
	forms := make(map[string]TrackForm, len(tracks))
	for _, form := range tracks {
		unitID, err := coord.Enqueue(form.Asset)
		if err != nil {
			return nil, err
		}
		forms[unitID] = form
	}

	for range coord.BeginAll(ctx) {
	}
	batch, err := coord.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	if len(batch.Stored) == 0 {
		return nil, fmt.Errorf("%w: %d uploads failed", ErrNoAssetsStored, len(batch.Failed))
	}

	sub := &records.Submission{
		Name:      artist.Name,
		Email:     artist.Email,
		Bio:       artist.Bio,
		Instagram: artist.Instagram,
		Spotify:   artist.Spotify,
	}
	if err := s.records.InsertSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	result := &Result{Submission: sub, FailedUploads: batch.Failed}
	for _, stored := range batch.Stored {
		form := forms[stored.UnitID]
		track := &records.Track{
			SubmissionID: sub.ID,
			Title:        form.Title,
			Genre:        form.Genre,
			BPM:          form.BPM,
			KeySignature: form.KeySignature,
			Description:  form.Description,
			FileLocation: stored.Location,
		}
		if err := s.records.InsertTrack(ctx, track); err != nil {
			return nil, fmt.Errorf("record track %q: %w", form.Title, err)
		}
		result.Tracks = append(result.Tracks, track)

		if err := s.bus.Publish(ctx, events.TrackUploaded, map[string]string{
			"track_id":       track.ID,
			"asset_location": track.FileLocation,
		}); err != nil {
			logger.Error("failed to publish ingestion event",
				logging.String(logging.FieldTrackID, track.ID),
				logging.Error(err),
			)
		}
	}

	s.sendConfirmation(ctx, logger, artist, len(result.Tracks))
	return result, nil
}

func (s *Service) sendConfirmation(ctx context.Context, logger *slog.Logger, artist ArtistInfo, trackCount int) {
	if err := s.mailer.SendSubmissionConfirmation(ctx, artist.Email, artist.Name, trackCount); err != nil {
		logger.Warn("confirmation email failed",
			logging.String("email", artist.Email),
			logging.Error(err),
		)
	}
}

func validateArtist(artist ArtistInfo) error {
	if strings.TrimSpace(artist.Name) == "" {
		return services.Wrap(services.ErrValidation, "submission", "submit", "artist name is required", nil)
	}
	email := strings.TrimSpace(artist.Email)
	if email == "" || !strings.Contains(email, "@") {
		return services.Wrap(services.ErrValidation, "submission", "submit", "a valid email is required", nil)
	}
	return nil
}
