// Package logs reads the JSON log file written by walker-yt: the last N
// lines, a live follow built on the tail reader, and filtering by run, track,
// or level.
package logs
