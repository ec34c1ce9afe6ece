// Package player feeds the separation buffer to mpv as raw PCM on stdin.
package player
