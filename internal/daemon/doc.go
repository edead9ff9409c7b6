// Package daemon assembles the ingestion services into a single lifecycle
// with flock-based locking to prevent multiple concurrent instances.
package daemon
