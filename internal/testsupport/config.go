// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"demodrop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.LocalDir = filepath.Join(base, "assets")
	cfg.Pipeline.RetryBackoffSeconds = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxFileMiB overrides the upload size ceiling on the test config.
func WithMaxFileMiB(mib int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Uploads.MaxFileMiB = mib
	}
}

// WithFetchTimeout overrides the pipeline fetch timeout on the test config.
func WithFetchTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.FetchTimeoutSeconds = seconds
	}
}
