// Package procs defines how pipeline stages launch external tools.
//
// Stages build an *exec.Cmd and hand it to a Launcher together with a Role.
// The production launcher is the singleton guard, which places each child in
// its own process group, tags it with the run's launch marker, and records it
// so a superseding run or a termination signal can kill it. Tests and
// one-off commands use Direct.
package procs
