// Package guard keeps walker-yt to a single active instance and owns every
// external process the instance launches.
//
// Acquire supersedes any previous instance: it terminates the PID recorded
// beside the lock file, then every registry row whose process still carries
// the walker-yt launch marker, and finally takes the gofrs/flock instance
// lock. Guard implements procs.Launcher so splitter, separator, decoder, and
// player processes start in their own process group with the marker in their
// environment and are recorded in both the in-memory and the persistent
// registry until they exit.
package guard
