// Package main hosts the walker-yt CLI entrypoint and command graph.
//
// "separate" runs the whole pipeline in the foreground: it takes over from
// any previous instance, downloads the track, starts the chunked separation
// worker, waits for the first chunk, and plays the growing buffer while later
// segments are still being separated. The remaining commands inspect or serve
// what separate recorded: run history, the buffer as a stream, dependency
// health, and configuration.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here through commands or flags.
package main
