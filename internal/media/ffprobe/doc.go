// Package ffprobe runs ffprobe against downloaded tracks and exposes the
// handful of fields the pipeline needs: audio stream presence, codec, and
// duration.
//
// The splitter uses RequireAudio to reject truncated or non-audio downloads
// before any segment work starts; the coordinator uses DurationSeconds to
// estimate the segment count for progress reporting.
package ffprobe
