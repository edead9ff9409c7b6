// Package submission implements the artist-facing submission flow: upload a
// batch of demo assets, record the submission and its tracks, trigger the
// ingestion pipeline for each stored asset, and confirm by email. It also
// carries the reviewer-side field edits.
package submission
