package records_test

import (
	"context"
	"errors"
	"testing"

	"demodrop/internal/records"
	"demodrop/internal/testsupport"
)

func TestInsertAndGetSubmission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sub := testsupport.NewSubmission(t, store, "Ada", "ada@example.com")
	if sub.ID == "" {
		t.Fatal("expected submission ID to be assigned")
	}
	if sub.Status != records.StatusPending {
		t.Fatalf("expected new submission to be Pending, got %q", sub.Status)
	}

	fetched, err := store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if fetched == nil || fetched.Name != "Ada" || fetched.Email != "ada@example.com" {
		t.Fatalf("unexpected fetched submission: %#v", fetched)
	}
}

func TestGetSubmissionMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetched, err := store.GetSubmission(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if fetched != nil {
		t.Fatalf("expected nil for missing submission, got %#v", fetched)
	}
}

func TestInsertSubmissionRequiresNameAndEmail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.InsertSubmission(context.Background(), &records.Submission{Name: "No Email"})
	if err == nil {
		t.Fatal("expected error when email missing")
	}
}

func TestListSubmissionsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.NewSubmission(t, store, "First", "first@example.com")
	second := testsupport.NewSubmission(t, store, "Second", "second@example.com")

	subs, err := store.ListSubmissions(context.Background())
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	// Same-timestamp inserts fall back to id ordering; either way the later
	// insert must not sort after older entries by creation time.
	if subs[0].ID != second.ID && subs[0].CreatedAt.Before(subs[1].CreatedAt) {
		t.Fatalf("expected newest-first ordering, got %s then %s", subs[0].ID, subs[1].ID)
	}
	_ = first
}

func TestTracksBelongToSubmission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sub := testsupport.NewSubmission(t, store, "Ada", "ada@example.com")
	testsupport.NewTrack(t, store, sub.ID, "Night Drive", "demos/a.mp3")
	testsupport.NewTrack(t, store, sub.ID, "Daybreak", "demos/b.mp3")

	tracks, err := store.TracksForSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("TracksForSubmission: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	for _, track := range tracks {
		if track.SubmissionID != sub.ID {
			t.Fatalf("track %s attached to wrong submission %s", track.ID, track.SubmissionID)
		}
		if track.HasDerivedMetadata() {
			t.Fatalf("new track should have no derived metadata: %#v", track)
		}
	}
}

func TestUpdateTrackFieldsMergesByField(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sub := testsupport.NewSubmission(t, store, "Ada", "ada@example.com")
	track := testsupport.NewTrack(t, store, sub.ID, "Night Drive", "demos/a.mp3")

	// Reviewer writes a submitter field while the pipeline writes derived ones.
	if err := store.UpdateTrackFields(ctx, track.ID, records.Fields{"genre": "techno"}); err != nil {
		t.Fatalf("UpdateTrackFields genre: %v", err)
	}
	if err := store.UpdateTrackFields(ctx, track.ID, records.Fields{
		"container_format": "flac",
		"duration_seconds": 183.5,
		"codec":            "FLAC",
	}); err != nil {
		t.Fatalf("UpdateTrackFields derived: %v", err)
	}

	fetched, err := store.GetTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetTrack: %v", err)
	}
	if fetched.Genre != "techno" {
		t.Fatalf("derived update clobbered genre: %q", fetched.Genre)
	}
	if fetched.ContainerFormat != "flac" || fetched.DurationSeconds != 183.5 {
		t.Fatalf("derived fields not applied: %#v", fetched)
	}
	if fetched.Title != "Night Drive" {
		t.Fatalf("unrelated field changed: %q", fetched.Title)
	}
}

func TestUpdateFieldsRejectsUnknownField(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	sub := testsupport.NewSubmission(t, store, "Ada", "ada@example.com")
	err := store.UpdateSubmissionFields(context.Background(), sub.ID, records.Fields{"email": "new@example.com"})
	if err == nil {
		t.Fatal("expected error for non-updatable field")
	}
}

func TestUpdateFieldsMissingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.UpdateTrackFields(context.Background(), "gone", records.Fields{"codec": "MP3"})
	if !errors.Is(err, records.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestParseReviewStatus(t *testing.T) {
	if status, ok := records.ParseReviewStatus("Approved"); !ok || status != records.StatusApproved {
		t.Fatalf("expected Approved, got %q ok=%v", status, ok)
	}
	if _, ok := records.ParseReviewStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
}
