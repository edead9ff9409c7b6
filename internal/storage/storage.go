package storage

import (
	"context"
	"errors"
	"io"

	"demodrop/internal/config"
)

// ErrObjectNotFound indicates a fetch targeted a location with no object.
var ErrObjectNotFound = errors.New("object not found")

// Backend is the durable object store contract the ingestion core depends on.
// Store returns a location usable with Fetch; the store is assumed strongly
// consistent for read-after-write.
type Backend interface {
	Store(ctx context.Context, key string, r io.Reader, size int64) (location string, err error)
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// New selects a backend from configuration: S3-compatible when an endpoint is
// configured, filesystem otherwise.
func New(cfg *config.Config) (Backend, error) {
	if cfg.Storage.Endpoint != "" {
		return NewObjectStore(cfg.Storage)
	}
	return NewFSBackend(cfg.Storage.LocalDir)
}
