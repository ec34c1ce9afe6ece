// Package streamhttp serves separation buffers and run progress over HTTP.
//
// Routes (gorilla/mux):
//
//	GET /runs                  recent runs as JSON
//	GET /tracks/{id}           latest run for a track as JSON
//	GET /tracks/{id}/stream    chunked raw PCM that follows the growing buffer
//	GET /tracks/{id}/progress  websocket pushing run snapshots until the run ends
//
// The server runs in a different process from the pipeline, so it learns
// about progress from the run history database. Stream responses never pass
// the buffered byte count recorded there.
package streamhttp
