package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateUploads(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		// Filesystem backend; LocalDir is defaulted under the data dir.
		return nil
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket must be set when storage.endpoint is configured")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return errors.New("storage.access_key and storage.secret_key are required when storage.endpoint is configured (or set DEMODROP_STORAGE_ACCESS_KEY / DEMODROP_STORAGE_SECRET_KEY)")
	}
	return nil
}

func (c *Config) validateUploads() error {
	if c.Uploads.MaxFileMiB <= 0 {
		return fmt.Errorf("uploads.max_file_mib must be positive, got %d", c.Uploads.MaxFileMiB)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.FetchTimeoutSeconds <= 0 {
		return errors.New("pipeline.fetch_timeout_seconds must be positive")
	}
	if c.Pipeline.MaxDeliveryAttempts <= 0 {
		return errors.New("pipeline.max_delivery_attempts must be positive")
	}
	if c.Pipeline.RetryBackoffSeconds < 0 {
		return errors.New("pipeline.retry_backoff_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateEmail() error {
	if c.Email.APIKey == "" {
		return nil
	}
	if strings.TrimSpace(c.Email.Endpoint) == "" {
		return errors.New("email.endpoint must be set when email.api_key is configured")
	}
	if strings.TrimSpace(c.Email.From) == "" {
		return errors.New("email.from must be set when email.api_key is configured")
	}
	return nil
}
