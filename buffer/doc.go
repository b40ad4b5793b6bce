// Package buffer turns a live stream of speaker-tagged chunks into discrete
// turn drafts.
//
// A SpeakerBuffer holds the text of the speaker currently talking. It flushes
// a draft to its TurnSink when the speaker changes, when the next chunk would
// push the buffer past its maximum length, and when the session ends. Each
// draft carries a sequence number that starts at 1 for every session.
//
// A SpeakerBuffer is not safe for concurrent use; callers serialize calls for
// one session. The Registry owns one buffer per active session, serializes
// access to each, and ends sessions that stay idle past a timeout so their
// buffered text is still delivered.
//
// # Usage
//
//	registry, err := buffer.NewRegistry(pipeline, buffer.WithIdleTimeout(time.Hour))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.Start("meeting-1", "client-1")
//	registry.AddChunk(ctx, "meeting-1", core.Chunk{Speaker: "Ken", Text: "Hello"})
//	summary, err := registry.End(ctx, "meeting-1")
package buffer
