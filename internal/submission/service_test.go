package submission_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"demodrop/internal/events"
	"demodrop/internal/logging"
	"demodrop/internal/records"
	"demodrop/internal/storage"
	"demodrop/internal/submission"
	"demodrop/internal/testsupport"
	"demodrop/internal/upload"
)

type recordingMailer struct {
	mu    sync.Mutex
	sends []string
	fail  bool
}

func (m *recordingMailer) SendSubmissionConfirmation(ctx context.Context, to, artistName string, trackCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, to)
	if m.fail {
		return errors.New("provider rejected")
	}
	return nil
}

func (m *recordingMailer) TestNotification(ctx context.Context, to string) error { return nil }

func (m *recordingMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sends...)
}

type fixture struct {
	service *submission.Service
	records *records.Store
	bus     *events.Bus
	mailer  *recordingMailer
	tracks  chan events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	recs := testsupport.MustOpenStore(t, cfg)

	backend, err := storage.NewFSBackend(cfg.Storage.LocalDir)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}

	bus := events.NewBus(logging.NewNop(), 3, 0)
	if err := bus.Start(context.Background(), 1); err != nil {
		t.Fatalf("bus.Start: %v", err)
	}
	t.Cleanup(bus.Stop)

	published := make(chan events.Event, 16)
	bus.Subscribe(events.TrackUploaded, func(ctx context.Context, evt events.Event) error {
		published <- evt
		return nil
	})

	mailer := &recordingMailer{}
	svc := submission.NewService(cfg, recs, backend, bus, mailer, logging.NewNop())
	return &fixture{service: svc, records: recs, bus: bus, mailer: mailer, tracks: published}
}

func asset(name string, data []byte) upload.Asset {
	return upload.Asset{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestSubmitRecordsAndPublishes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	result, err := fx.service.Submit(ctx, submission.ArtistInfo{
		Name:  "Nia",
		Email: "nia@example.com",
		Bio:   "Producer from Leeds",
	}, []submission.TrackForm{
		{Title: "Night Drive", Genre: "House", BPM: "124", Asset: asset("night-drive.wav", []byte("wav bytes one"))},
		{Title: "Daybreak", Genre: "Ambient", Asset: asset("daybreak.flac", []byte("flac bytes two"))},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if result.Submission.ID == "" || result.Submission.Status != records.StatusPending {
		t.Fatalf("unexpected submission: %+v", result.Submission)
	}
	if len(result.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(result.Tracks))
	}
	if result.Tracks[0].Title != "Night Drive" || result.Tracks[0].BPM != "124" {
		t.Fatalf("track fields not recorded: %+v", result.Tracks[0])
	}

	stored, err := fx.records.TracksForSubmission(ctx, result.Submission.ID)
	if err != nil {
		t.Fatalf("TracksForSubmission: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("persisted tracks = %d, want 2", len(stored))
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-fx.tracks:
			seen[evt.Payload["track_id"]] = true
			if evt.Payload["asset_location"] == "" {
				t.Fatalf("event missing asset location: %v", evt.Payload)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for ingestion events")
		}
	}
	for _, track := range result.Tracks {
		if !seen[track.ID] {
			t.Fatalf("no ingestion event for track %s", track.ID)
		}
	}

	if to := fx.mailer.sentTo(); len(to) != 1 || to[0] != "nia@example.com" {
		t.Fatalf("confirmation sends = %v", to)
	}
}

func TestSubmitRejectsMissingIdentity(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Submit(context.Background(), submission.ArtistInfo{Email: "x@example.com"}, []submission.TrackForm{
		{Title: "Untitled", Asset: asset("a.mp3", []byte("data"))},
	})
	if err == nil {
		t.Fatal("expected validation error for missing name")
	}

	_, err = fx.service.Submit(context.Background(), submission.ArtistInfo{Name: "Nia", Email: "not-an-email"}, []submission.TrackForm{
		{Title: "Untitled", Asset: asset("a.mp3", []byte("data"))},
	})
	if err == nil {
		t.Fatal("expected validation error for bad email")
	}
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Submit(context.Background(), submission.ArtistInfo{Name: "Nia", Email: "nia@example.com"}, nil)
	if !errors.Is(err, upload.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestSubmitRejectsOversizeAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxFileMiB(1))
	recs := testsupport.MustOpenStore(t, cfg)
	backend, err := storage.NewFSBackend(cfg.Storage.LocalDir)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	bus := events.NewBus(logging.NewNop(), 3, 0)
	if err := bus.Start(context.Background(), 1); err != nil {
		t.Fatalf("bus.Start: %v", err)
	}
	t.Cleanup(bus.Stop)
	svc := submission.NewService(cfg, recs, backend, bus, &recordingMailer{}, logging.NewNop())

	_, err = svc.Submit(context.Background(), submission.ArtistInfo{Name: "Nia", Email: "nia@example.com"}, []submission.TrackForm{
		{Title: "Big", Asset: upload.Asset{
			Name: "big.wav",
			Size: 2 * 1024 * 1024,
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil },
		}},
	})
	if !errors.Is(err, upload.ErrOversizeAsset) {
		t.Fatalf("expected ErrOversizeAsset, got %v", err)
	}
}

func TestSubmitSurvivesEmailFailure(t *testing.T) {
	fx := newFixture(t)
	fx.mailer.fail = true

	result, err := fx.service.Submit(context.Background(), submission.ArtistInfo{Name: "Nia", Email: "nia@example.com"}, []submission.TrackForm{
		{Title: "Night Drive", Asset: asset("a.wav", []byte("payload"))},
	})
	if err != nil {
		t.Fatalf("Submit should not fail on email error: %v", err)
	}
	if len(result.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(result.Tracks))
	}
}

func TestUpdateReview(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	sub := testsupport.NewSubmission(t, fx.records, "Nia", "nia@example.com")

	status := records.StatusApproved
	rating := 4
	notes := "signed for the spring compilation"
	if err := fx.service.UpdateReview(ctx, sub.ID, submission.ReviewUpdate{
		Status: &status,
		Rating: &rating,
		Notes:  &notes,
	}); err != nil {
		t.Fatalf("UpdateReview: %v", err)
	}

	loaded, err := fx.records.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if loaded.Status != records.StatusApproved || loaded.Rating != 4 || loaded.Notes != notes {
		t.Fatalf("review fields not applied: %+v", loaded)
	}

	bad := records.ReviewStatus("Archived")
	if err := fx.service.UpdateReview(ctx, sub.ID, submission.ReviewUpdate{Status: &bad}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	outOfRange := 9
	if err := fx.service.UpdateReview(ctx, sub.ID, submission.ReviewUpdate{Rating: &outOfRange}); err == nil {
		t.Fatal("expected out-of-range rating to be rejected")
	}

	if err := fx.service.UpdateReview(ctx, "missing-id", submission.ReviewUpdate{Rating: &rating}); !errors.Is(err, records.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}
