package testsupport

import (
	"context"
	"testing"

	"demodrop/internal/config"
	"demodrop/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSubmission inserts a submission for tests using the provided store.
func NewSubmission(t testing.TB, store *records.Store, name, email string) *records.Submission {
	t.Helper()

	sub := &records.Submission{Name: name, Email: email}
	if err := store.InsertSubmission(context.Background(), sub); err != nil {
		t.Fatalf("store.InsertSubmission: %v", err)
	}
	return sub
}

// NewTrack inserts a track for tests belonging to the given submission.
func NewTrack(t testing.TB, store *records.Store, submissionID, title, location string) *records.Track {
	t.Helper()

	track := &records.Track{
		SubmissionID: submissionID,
		Title:        title,
		FileLocation: location,
	}
	if err := store.InsertTrack(context.Background(), track); err != nil {
		t.Fatalf("store.InsertTrack: %v", err)
	}
	return track
}
