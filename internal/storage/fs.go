package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"demodrop/internal/services"
)

// FSBackend persists objects on the local filesystem, mirroring the object
// store's key semantics for development and tests.
type FSBackend struct {
	root string
}

// NewFSBackend creates a filesystem backend rooted at dir.
func NewFSBackend(root string) (*FSBackend, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "fs", "empty root directory", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSBackend{root: root}, nil
}

// Store writes the object under the root, creating parent directories as
// needed. Writes go to a temp file first so a crashed upload never leaves a
// partial object at its final location.
func (s *FSBackend) Store(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, err := s.safePath(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cleaned), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), cleaned); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}
	return filepath.ToSlash(key), nil
}

// Fetch reads the object stored at location.
func (s *FSBackend) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned, err := s.safePath(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cleaned)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, location)
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (s *FSBackend) safePath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "fs", "empty key", nil)
	}
	cleaned := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, cleaned)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", services.Wrap(services.ErrValidation, "storage", "fs", "key escapes storage root: "+key, nil)
	}
	return cleaned, nil
}
