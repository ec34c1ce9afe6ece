// Package pipeline runs the chunked separation loop and gates playback on it.
//
// A Coordinator owns one background worker per run. The worker splits the
// downloaded track, then separates and appends one segment at a time, so
// buffer appends are strictly ordered by segment index. Progress is exposed
// through Run snapshots and pushed to Reporters on every state change.
//
// State machine:
//
//	Idle -> Splitting -> Separating(i) -> Ready -> Streaming -> Finished
//	                  \______________________________________/
//	                                 -> Error
//
// Ready is recorded once, the first time the durable buffer size crosses the
// readiness threshold; the worker keeps separating afterwards. A worker that
// fails before that point fails with services.ErrProducerDied.
//
// The Gate blocks the caller until the buffer is playable, the worker dies,
// or the readiness timeout elapses. It wakes on fsnotify write events and
// falls back to a fixed poll interval.
package pipeline
