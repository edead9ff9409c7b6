// Package logging configures slog-based structured logging with console and
// JSON handlers plus helpers for standardized field names.
package logging
