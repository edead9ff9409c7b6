// Package events provides the in-process event bus that decouples the
// submission flow from the ingestion pipeline. Delivery is at-least-once:
// failed handlers are retried with backoff until the attempt budget runs out.
package events
