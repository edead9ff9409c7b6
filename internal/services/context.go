package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	stepKey      contextKey = "step"
	trackIDKey   contextKey = "track_id"
	requestIDKey contextKey = "request_id"
)

// WithJobID attaches a pipeline job identifier to the context.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the pipeline job identifier, if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(jobIDKey).(string)
	return id, ok && id != ""
}

// WithStep attaches a pipeline step name to the context.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext extracts the pipeline step name, if present.
func StepFromContext(ctx context.Context) (string, bool) {
	step, ok := ctx.Value(stepKey).(string)
	return step, ok && step != ""
}

// WithTrackID attaches a track record identifier to the context.
func WithTrackID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, trackIDKey, id)
}

// TrackIDFromContext extracts the track record identifier, if present.
func TrackIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(trackIDKey).(string)
	return id, ok && id != ""
}

// WithRequestID attaches a correlation identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier, if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
