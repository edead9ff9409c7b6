// Command demodrop is the operator CLI: submit demos, inspect and review
// submissions, watch the live view, and manage ingestion jobs.
package main
