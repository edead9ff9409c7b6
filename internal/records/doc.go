// Package records persists submission and track entities in SQLite and
// exposes a post-commit change-notification feed for live viewers.
//
// The store only ever inserts records and applies field-level updates; the
// ingestion core never deletes or recreates entities, so concurrent writers
// touching disjoint fields cannot clobber each other.
package records
