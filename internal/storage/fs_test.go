package storage_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"demodrop/internal/storage"
)

func TestFSBackendRoundTrip(t *testing.T) {
	backend, err := storage.NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}

	ctx := context.Background()
	payload := []byte("demo audio bytes")
	location, err := backend.Store(ctx, "demos/2026/track.mp3", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if location != "demos/2026/track.mp3" {
		t.Fatalf("unexpected location %q", location)
	}

	data, err := backend.Fetch(ctx, location)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("fetched bytes differ: %q", data)
	}
}

func TestFSBackendFetchMissing(t *testing.T) {
	backend, err := storage.NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}

	_, err = backend.Fetch(context.Background(), "demos/absent.mp3")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFSBackendRejectsEscapingKeys(t *testing.T) {
	backend, err := storage.NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}

	if _, err := backend.Store(context.Background(), "../outside", bytes.NewReader(nil), 0); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := backend.Fetch(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal fetch to be rejected")
	}
}

func TestFSBackendOverwriteIsAtomicReplace(t *testing.T) {
	backend, err := storage.NewFSBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}

	ctx := context.Background()
	if _, err := backend.Store(ctx, "demos/a.mp3", bytes.NewReader([]byte("v1")), 2); err != nil {
		t.Fatalf("Store v1: %v", err)
	}
	if _, err := backend.Store(ctx, "demos/a.mp3", bytes.NewReader([]byte("v2")), 2); err != nil {
		t.Fatalf("Store v2: %v", err)
	}
	data, err := backend.Fetch(ctx, "demos/a.mp3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("expected v2, got %q", data)
	}
}
