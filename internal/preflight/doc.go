// Package preflight provides readiness checks for the binaries, directories,
// and services walker-yt depends on.
//
// These checks run in two contexts:
//   - "walker-yt separate" calls RunAll before downloading. A failed check
//     aborts the run before any work is wasted.
//   - "walker-yt doctor" renders CheckSystemDeps and RunAll as tables.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
