// Package segment splits a downloaded track into fixed-length slices.
//
// Splitting is a container-level copy (ffmpeg's segment muxer with -c copy),
// so no samples are re-encoded. Slice names are zero-padded so lexicographic
// order equals temporal order, and the output directory is cleared before
// every split so slices from an earlier run never mix with new ones.
package segment
