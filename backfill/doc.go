// Package backfill re-embeds turns that were stored without an embedding.
//
// The ingestion pipeline never drops a turn when the embedding provider is
// down; it stores the turn with the failure recorded. A Backfiller pages
// through those turns in ID order, embeds them in batches with retry and
// backoff, and updates them in place. Progress is reported to a writer, and
// a checkpoint of the last processed ID lets an interrupted run resume.
//
// Analyze estimates the token count and cost of a run without calling the
// provider.
package backfill
