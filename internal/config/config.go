package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage configures the durable object store holding uploaded assets.
// When Endpoint is empty the filesystem backend rooted at LocalDir is used.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	LocalDir  string `toml:"local_dir"`
}

// Uploads configures client-side transfer limits.
type Uploads struct {
	MaxFileMiB int64 `toml:"max_file_mib"`
}

// Pipeline configures ingestion job execution and event re-delivery.
type Pipeline struct {
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
	MaxDeliveryAttempts int `toml:"max_delivery_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
}

// RetryBackoff returns the delay between event re-deliveries.
func (p Pipeline) RetryBackoff() time.Duration {
	if p.RetryBackoffSeconds <= 0 {
		return 0
	}
	return time.Duration(p.RetryBackoffSeconds) * time.Second
}

// Email configures the confirmation mail sender. An empty APIKey disables
// sending entirely.
type Email struct {
	APIKey         string `toml:"api_key"`
	Endpoint       string `toml:"endpoint"`
	From           string `toml:"from"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root demodrop configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Storage  Storage  `toml:"storage"`
	Uploads  Uploads  `toml:"uploads"`
	Pipeline Pipeline `toml:"pipeline"`
	Email    Email    `toml:"email"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the conventional config location for the current user.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "demodrop", "config.toml"), nil
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Environment overrides are applied after decoding.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults plus env overrides are enough for development use.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("DEMODROP_STORAGE_ACCESS_KEY")); v != "" {
		c.Storage.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DEMODROP_STORAGE_SECRET_KEY")); v != "" {
		c.Storage.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DEMODROP_EMAIL_API_KEY")); v != "" {
		c.Email.APIKey = v
	}
}

func (c *Config) normalize() {
	c.Paths.DataDir = ExpandPath(c.Paths.DataDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	c.Storage.LocalDir = ExpandPath(c.Storage.LocalDir)
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = filepath.Join(c.Paths.DataDir, "assets")
	}
}

// EnsureDirectories creates the directories the service writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Endpoint == "" {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	path = ExpandPath(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
