// Package pcm owns the raw sample format shared by the separation pipeline and
// its consumers, the decoders that produce it, and the append-only buffer
// writer that concatenates decoded segments into one growing file.
//
// Everything downstream of separation is 44100 Hz, 2 channel, signed 16-bit
// little-endian interleaved samples. The Writer flushes and fsyncs every
// append before advancing its byte counter, so a reader bounded by that
// counter never observes a partially written segment.
package pcm
