package workflow_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"demodrop/internal/events"
	"demodrop/internal/logging"
	"demodrop/internal/pipeline"
	"demodrop/internal/records"
	"demodrop/internal/storage"
	"demodrop/internal/testsupport"
	"demodrop/internal/workflow"
)

func wavBytes() []byte {
	var buf bytes.Buffer
	dataLen := uint32(176400)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint32(44100))
	binary.Write(&buf, binary.LittleEndian, uint32(176400))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

type harness struct {
	records *records.Store
	jobs    *pipeline.Store
	bus     *events.Bus
	manager *workflow.Manager
	backend storage.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	recs := testsupport.MustOpenStore(t, cfg)

	jobs, err := pipeline.Open(cfg)
	if err != nil {
		t.Fatalf("pipeline.Open: %v", err)
	}
	t.Cleanup(func() { jobs.Close() })

	backend, err := storage.NewFSBackend(cfg.Storage.LocalDir)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}

	runner, err := pipeline.NewRunner(cfg, jobs, recs, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	bus := events.NewBus(logging.NewNop(), 5, 0)
	manager := workflow.NewManager(bus, runner, jobs, logging.NewNop())
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("manager.Start: %v", err)
	}
	t.Cleanup(manager.Stop)
	if err := bus.Start(context.Background(), 2); err != nil {
		t.Fatalf("bus.Start: %v", err)
	}
	t.Cleanup(bus.Stop)

	return &harness{records: recs, jobs: jobs, bus: bus, manager: manager, backend: backend}
}

func (h *harness) waitForJob(t *testing.T, trackID string, want pipeline.JobStatus) *pipeline.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.jobs.JobForTrack(context.Background(), trackID)
		if err != nil {
			t.Fatalf("JobForTrack: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job for track %s never reached %q", trackID, want)
	return nil
}

func TestManagerIngestsUploadedTrack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	location, err := h.backend.Store(ctx, "demos/track.wav", bytes.NewReader(wavBytes()), int64(len(wavBytes())))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	sub := testsupport.NewSubmission(t, h.records, "Nia", "nia@example.com")
	track := testsupport.NewTrack(t, h.records, sub.ID, "Night Drive", location)

	if err := h.bus.Publish(ctx, events.TrackUploaded, map[string]string{
		"track_id":       track.ID,
		"asset_location": location,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	h.waitForJob(t, track.ID, pipeline.JobCompleted)

	loaded, err := h.records.GetTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetTrack: %v", err)
	}
	if !loaded.HasDerivedMetadata() {
		t.Fatalf("derived metadata not written: %+v", loaded)
	}
}

func TestManagerRedeliveryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	location, err := h.backend.Store(ctx, "demos/track.wav", bytes.NewReader(wavBytes()), int64(len(wavBytes())))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	sub := testsupport.NewSubmission(t, h.records, "Nia", "nia@example.com")
	track := testsupport.NewTrack(t, h.records, sub.ID, "Night Drive", location)

	payload := map[string]string{"track_id": track.ID, "asset_location": location}
	if err := h.bus.Publish(ctx, events.TrackUploaded, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	h.waitForJob(t, track.ID, pipeline.JobCompleted)

	// A duplicate delivery of the same event must not create a second job.
	if err := h.bus.Publish(ctx, events.TrackUploaded, map[string]string{
		"track_id":       track.ID,
		"asset_location": location,
	}); err != nil {
		t.Fatalf("Publish duplicate: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	jobs, err := h.jobs.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1 after redelivery", len(jobs))
	}
}

func TestManagerPermanentFailureStopsRedelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	garbage := bytes.Repeat([]byte{0x7f}, 256)
	location, err := h.backend.Store(ctx, "demos/garbage.bin", bytes.NewReader(garbage), int64(len(garbage)))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	sub := testsupport.NewSubmission(t, h.records, "Nia", "nia@example.com")
	track := testsupport.NewTrack(t, h.records, sub.ID, "Broken", location)

	if err := h.bus.Publish(ctx, events.TrackUploaded, map[string]string{
		"track_id":       track.ID,
		"asset_location": location,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	job := h.waitForJob(t, track.ID, pipeline.JobFailed)
	if job.CurrentStep != pipeline.StepExtractMetadata {
		t.Fatalf("failed at %q, want extract_metadata", job.CurrentStep)
	}
	if h.manager.LastError() == nil {
		t.Fatal("manager should surface the failure")
	}

	// Derived fields stay unset rather than corrupted.
	loaded, err := h.records.GetTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetTrack: %v", err)
	}
	if loaded.HasDerivedMetadata() {
		t.Fatalf("failed job wrote metadata: %+v", loaded)
	}
}

func TestManagerRetryJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Track whose asset location does not exist: fetch fails as unreachable.
	sub := testsupport.NewSubmission(t, h.records, "Nia", "nia@example.com")
	track := testsupport.NewTrack(t, h.records, sub.ID, "Missing", "demos/missing.wav")

	if err := h.bus.Publish(ctx, events.TrackUploaded, map[string]string{
		"track_id": track.ID,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	job := h.waitForJob(t, track.ID, pipeline.JobFailed)

	// Land the asset, then retry by hand.
	if _, err := h.backend.Store(ctx, "demos/missing.wav", bytes.NewReader(wavBytes()), int64(len(wavBytes()))); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := h.manager.RetryJob(ctx, job.ID); err != nil {
		t.Fatalf("RetryJob: %v", err)
	}
	h.waitForJob(t, track.ID, pipeline.JobCompleted)
}
