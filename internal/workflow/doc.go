// Package workflow connects the event bus to the ingestion pipeline: every
// stored asset's upload event becomes a durable job run, with redelivery for
// transient failures and a terminal ledger entry for permanent ones.
package workflow
