// Package pipeline runs the asynchronous ingestion of uploaded demo assets.
// Each uploaded track gets a durable job that walks a fixed step sequence:
// fetch the asset, extract technical metadata, persist it onto the track
// record. Step outcomes are written to a ledger keyed by job and step name,
// so a re-run after a crash or failure resumes at the first incomplete step
// instead of repeating finished work.
package pipeline
