package logging_test

import (
	"context"
	"testing"

	"demodrop/internal/logging"
	"demodrop/internal/services"
)

func TestContextFieldsExtractsStandardKeys(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithTrackID(ctx, "track-1")
	ctx = services.WithStep(ctx, "extract_metadata")
	ctx = services.WithRequestID(ctx, "req-1")

	fields := logging.ContextFields(ctx)
	got := make(map[string]string, len(fields))
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}

	want := map[string]string{
		logging.FieldJobID:         "job-1",
		logging.FieldTrackID:       "track-1",
		logging.FieldStep:          "extract_metadata",
		logging.FieldCorrelationID: "req-1",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("%s = %q, want %q (fields %v)", key, got[key], value, got)
		}
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %d entries, want %d: %v", len(fields), len(want), got)
	}
}

func TestContextFieldsOnBareContext(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}
