// Package livefeed keeps an in-memory, newest-first view of the submission
// set synchronized with the record store. A viewer loads a one-shot snapshot,
// then merges incremental change events: inserts prepend, updates replace in
// place, and events for unknown records are ignored. If the change
// subscription is dropped, the viewer resubscribes and reloads on its own.
package livefeed
