// Package runstore persists pipeline run history and the registry of external
// processes launched by walker-yt in SQLite.
//
// Runs record the source track, the kept stem, the lifecycle status, segment
// counters, buffered bytes, and the indexes of degraded segments so `status`
// can show what happened after the fact. The process table survives crashes:
// a new instance reads it to find separation and player processes a previous
// instance left behind.
//
// The database is transient bookkeeping, not an archive. Schema changes bump
// schemaVersion in schema.go; users delete runs.db to adopt a new schema.
package runstore
