// Package services provides shared error classification and context
// propagation helpers used by the ingestion pipeline and its collaborators.
package services
