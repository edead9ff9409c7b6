// Package config loads, validates, and defaults demodrop configuration from
// TOML with environment overrides for secrets.
package config
