// Package ingestion turns drafts into stored, embedded turns.
//
// The Pipeline assigns every draft its position as soon as it arrives, then
// embeds and stores it on a bounded worker pool:
//   - ProcessOne handles a single draft and returns the stored turn
//   - ProcessMany handles a slice in batches and reports each outcome
//   - Accept implements buffer.TurnSink and stores drafts in the background
//
// A failed embedding never drops a turn; the turn is stored with the error
// recorded and can be re-embedded later by the backfill package. Storage
// errors are always returned to the caller.
package ingestion
