// Package tail exposes a growing buffer file as an open-ended stream.
//
// A Reader never reports io.EOF while its producer is active: when it
// catches up with the writer it blocks until more bytes are appended, the
// producer finishes, or the reader is closed. It only hands out bytes the
// writer has already made durable, either through a size function supplied
// by an in-process writer or through the file's size on disk.
package tail
