// Package download fetches the source audio for a track with yt-dlp.
//
// Downloads land at <track dir>/input.<ext> and are reused by later runs for
// the same track. A failed download removes whatever partial files it left,
// so the cached path only ever holds a complete container.
package download
