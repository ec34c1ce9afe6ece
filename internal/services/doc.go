// Package services defines shared utilities consumed by the separation
// pipeline and its external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, track IDs, stage names, and segment
//     indexes for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the run's terminal states (fatal setup, producer died, timeout) and
//     the absorbed ones (degraded segment, cleanup).
//
// Use these helpers when wiring new pipeline steps so failure handling and
// observability stay uniform across the run.
package services
