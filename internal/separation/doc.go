// Package separation drives demucs over a single segment at a time.
//
// Each call runs the model in two-stem mode, keeps the requested component
// (vocals.wav or no_vocals.wav), and deletes its complement. Calls are
// resource-capped: thread count through demucs' -j flag and the
// OMP/MKL/Torch thread variables, address space through RLIMIT_AS, and a
// lowered scheduling priority, so one segment cannot starve the player.
//
// A call that leaves no output file returns ErrNoOutput. Callers treat that
// as a degraded segment and keep going.
package separation
