// Package upload drives concurrent asset transfers into durable storage for
// one submission attempt. A coordinator owns a batch of transfer units,
// streams aggregate progress with throughput and ETA estimates, and reports
// which assets landed so the submission flow can proceed with the successes.
package upload
